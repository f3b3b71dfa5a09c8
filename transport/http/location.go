package http

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// fingerprint hashes a location descriptor down to the 16 hex chars carried in tokens
func fingerprint(s string) *string {
	sum := sha256.Sum256([]byte(s))
	fp := hex.EncodeToString(sum[:])[:16]
	return &fp
}

// networkOf returns the /24 (IPv4) or /64 (IPv6) network of ip, so that devices
// on the same classroom network share a fingerprint.
func networkOf(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String() + "/24"
	}
	return parsed.Mask(net.CIDRMask(64, 128)).String() + "/64"
}

// locationFingerprint resolves the fingerprint of a request: an explicit room
// code wins, otherwise the client network when binding is enabled.
func locationFingerprint(room, clientIP string, bind bool) *string {
	if room = strings.TrimSpace(room); room != "" {
		return fingerprint("room:" + room)
	}
	if bind && clientIP != "" {
		return fingerprint("net:" + networkOf(clientIP))
	}
	return nil
}
