package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/secatt/adapters/identity"
	"github.com/layer-3/secatt/adapters/store"
	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
	"github.com/layer-3/secatt/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	opened []core.Snapshot
	closed []core.Snapshot
	marked []core.AttendanceRecord
	counts []int
	err    error
}

func (p *recordingPublisher) PublishSessionOpened(ctx context.Context, snap core.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, snap)
	return p.err
}

func (p *recordingPublisher) PublishAttendanceMarked(ctx context.Context, rec core.AttendanceRecord, scannedCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marked = append(p.marked, rec)
	p.counts = append(p.counts, scannedCount)
	return p.err
}

func (p *recordingPublisher) PublishSessionClosed(ctx context.Context, snap core.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, snap)
	return p.err
}

type failingStore struct{}

func (failingStore) Record(context.Context, core.AttendanceRecord) error {
	return core.ErrStoreOperationFailed
}

func (failingStore) ListBySession(context.Context, string) ([]core.AttendanceRecord, error) {
	return nil, core.ErrStoreOperationFailed
}

type attendanceFixture struct {
	svc   *service.AttendanceService
	pub   *recordingPublisher
	cards *identity.CardRegistry
}

func newAttendanceService(t *testing.T, st ports.AttendanceStore) attendanceFixture {
	t.Helper()
	qr, clk := newQRService(t, service.QROptions{})
	pub := &recordingPublisher{}
	cards := identity.NewCardRegistry(map[string]string{"04:A3:1B:22": "S1"})
	log, _ := test.NewNullLogger()
	return attendanceFixture{
		svc:   service.NewAttendanceService(qr, st, pub, cards, clk, log),
		pub:   pub,
		cards: cards,
	}
}

func openDBMS(t *testing.T, svc *service.AttendanceService) core.IssuedToken {
	t.Helper()
	issued, err := svc.OpenSession(context.Background(), core.IssueRequest{
		IssuerID:     "F1",
		SubjectLabel: "DBMS",
		SessionKind:  core.SessionKindLecture,
		Duration:     10 * time.Minute,
	})
	require.NoError(t, err)
	return issued
}

func TestMarkAttendance(t *testing.T) {
	ctx := context.Background()
	f := newAttendanceService(t, store.NewMemoryStore())
	issued := openDBMS(t, f.svc)
	require.Len(t, f.pub.opened, 1)
	assert.Equal(t, issued.SessionID, f.pub.opened[0].SessionID)

	rec, total, err := f.svc.MarkAttendance(ctx, service.MarkRequest{
		Payload:           issued.Payload,
		StudentID:         "S1",
		ClientFingerprint: "10.0.0.7",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, issued.SessionID, rec.SessionID)
	assert.Equal(t, "F1", rec.IssuerID)
	assert.Equal(t, "DBMS", rec.SubjectLabel)
	assert.Equal(t, core.MethodQR, rec.Method)
	assert.Equal(t, t0, rec.MarkedAt)

	_, _, err = f.svc.MarkAttendance(ctx, service.MarkRequest{Payload: issued.Payload, StudentID: "S1"})
	assert.ErrorIs(t, err, core.ErrAlreadyScanned)

	_, total, err = f.svc.MarkAttendance(ctx, service.MarkRequest{Payload: issued.Payload, StudentID: "S2"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	assert.Equal(t, []int{1, 2}, f.pub.counts)

	sa, err := f.svc.SessionAttendance(ctx, issued.SessionID, "F1")
	require.NoError(t, err)
	assert.Equal(t, 2, sa.Snapshot.ScannedCount)
	require.Len(t, sa.Records, 2)
	assert.Equal(t, "S1", sa.Records[0].StudentID)
	assert.Equal(t, "S2", sa.Records[1].StudentID)
}

func TestMarkAttendanceRequiresStudent(t *testing.T) {
	f := newAttendanceService(t, store.NewMemoryStore())
	issued := openDBMS(t, f.svc)

	_, _, err := f.svc.MarkAttendance(context.Background(), service.MarkRequest{Payload: issued.Payload, StudentID: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestMarkAttendanceWithCard(t *testing.T) {
	ctx := context.Background()
	f := newAttendanceService(t, store.NewMemoryStore())
	issued := openDBMS(t, f.svc)

	_, _, err := f.svc.MarkAttendance(ctx, service.MarkRequest{
		Payload:    issued.Payload,
		StudentID:  "S1",
		Credential: &core.Credential{Method: identity.MethodRFID, Value: "DEADBEEF"},
	})
	assert.ErrorIs(t, err, core.ErrIdentityRejected)

	// a rejected credential leaves the scan unconsumed
	snap, err := f.svc.Snapshot(issued.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ScannedCount)

	rec, _, err := f.svc.MarkAttendance(ctx, service.MarkRequest{
		Payload:    issued.Payload,
		StudentID:  "S1",
		Credential: &core.Credential{Method: identity.MethodRFID, Value: "04a31b22"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.MethodQRRFID, rec.Method)
}

func TestMarkAttendanceSurfacesTokenErrors(t *testing.T) {
	f := newAttendanceService(t, store.NewMemoryStore())

	_, _, err := f.svc.MarkAttendance(context.Background(), service.MarkRequest{Payload: "garbage", StudentID: "S1"})
	assert.ErrorIs(t, err, core.ErrMalformedToken)
	assert.Empty(t, f.pub.marked)
}

func TestMarkAttendanceStoreFailure(t *testing.T) {
	f := newAttendanceService(t, failingStore{})
	issued := openDBMS(t, f.svc)

	_, _, err := f.svc.MarkAttendance(context.Background(), service.MarkRequest{Payload: issued.Payload, StudentID: "S1"})
	assert.ErrorIs(t, err, core.ErrStoreOperationFailed)
	assert.Empty(t, f.pub.marked)

	_, err = f.svc.SessionAttendance(context.Background(), issued.SessionID, "F1")
	assert.ErrorIs(t, err, core.ErrStoreOperationFailed)
}

func TestPublishFailureDoesNotFailOperations(t *testing.T) {
	ctx := context.Background()
	f := newAttendanceService(t, store.NewMemoryStore())
	f.pub.err = errors.New("broker down")

	issued := openDBMS(t, f.svc)
	_, _, err := f.svc.MarkAttendance(ctx, service.MarkRequest{Payload: issued.Payload, StudentID: "S1"})
	require.NoError(t, err)
	_, err = f.svc.EndSession(ctx, issued.SessionID, "F1")
	require.NoError(t, err)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	f := newAttendanceService(t, store.NewMemoryStore())
	issued := openDBMS(t, f.svc)

	_, err := f.svc.EndSession(ctx, issued.SessionID, "F2")
	assert.ErrorIs(t, err, core.ErrNotAuthorized)

	snap, err := f.svc.EndSession(ctx, issued.SessionID, "F1")
	require.NoError(t, err)
	assert.False(t, snap.IsOpen)
	require.Len(t, f.pub.closed, 1)

	_, _, err = f.svc.MarkAttendance(ctx, service.MarkRequest{Payload: issued.Payload, StudentID: "S1"})
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestSessionAttendanceIssuerOnly(t *testing.T) {
	ctx := context.Background()
	f := newAttendanceService(t, store.NewMemoryStore())
	issued := openDBMS(t, f.svc)

	_, err := f.svc.SessionAttendance(ctx, issued.SessionID, "F2")
	assert.ErrorIs(t, err, core.ErrNotAuthorized)

	_, err = f.svc.SessionAttendance(ctx, "missing", "F1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	sa, err := f.svc.SessionAttendance(ctx, issued.SessionID, "F1")
	require.NoError(t, err)
	assert.Empty(t, sa.Records)
	assert.Len(t, f.svc.ActiveSessions("F1"), 1)
}
