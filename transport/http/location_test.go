package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkOf(t *testing.T) {
	assert.Equal(t, "10.1.2.0/24", networkOf("10.1.2.77"))
	assert.Equal(t, "2001:db8:1:2::/64", networkOf("2001:db8:1:2:aaaa::1"))
	assert.Equal(t, "not-an-ip", networkOf("not-an-ip"))
}

func TestLocationFingerprint(t *testing.T) {
	assert.Nil(t, locationFingerprint("", "10.1.2.77", false))
	assert.Nil(t, locationFingerprint("  ", "", true))

	room := locationFingerprint("B-204", "10.1.2.77", true)
	require.NotNil(t, room)
	assert.Len(t, *room, 16)
	assert.Equal(t, *room, *locationFingerprint(" B-204 ", "192.168.0.1", false))

	a := locationFingerprint("", "10.1.2.77", true)
	b := locationFingerprint("", "10.1.2.200", true)
	c := locationFingerprint("", "10.1.3.5", true)
	require.NotNil(t, a)
	assert.Equal(t, *a, *b)
	assert.NotEqual(t, *a, *c)
	assert.NotEqual(t, *room, *a)
}
