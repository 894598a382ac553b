// internal/registration/implementation_test.go
package registration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestService(ledger Ledger) *service {
	return NewService(ledger, nil, nil).(*service)
}

func futureEvent(capacity int) EventSnapshot {
	return EventSnapshot{
		ID:          uuid.New(),
		Active:      true,
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Capacity:    capacity,
	}
}

func TestRegisterAdmitsMember(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(10)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	reg, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, memberID, reg.MemberID)
	assert.Equal(t, ev.ID, reg.EventID)
	assert.Equal(t, StateActive, reg.State)
	assert.Equal(t, 1, reg.Version)

	count, err := ledger.ActiveCountForEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterUnknownEvent(t *testing.T) {
	svc := newTestService(NewMemoryLedger())

	_, err := svc.Register(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, CodeEventNotFound, CodeOf(err))
}

func TestRegisterInactiveEvent(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(10)
	ev.Active = false
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
	assert.Equal(t, CodeEventInactive, CodeOf(err))
}

func TestRegisterPastEvent(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(10)
	ev.ScheduledAt = time.Now().Add(-time.Hour)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
	assert.Equal(t, CodeEventInPast, CodeOf(err))
}

func TestRegisterTwiceRejected(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(10)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	_, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), memberID, ev.ID)
	assert.Equal(t, CodeAlreadyRegistered, CodeOf(err))

	count, err := ledger.ActiveCountForEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterFullEvent(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(2)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	for i := 0; i < 2; i++ {
		_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
		require.NoError(t, err)
	}

	_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
	assert.Equal(t, CodeEventFull, CodeOf(err))
}

func TestConcurrentRegistrationsNeverOverbook(t *testing.T) {
	const capacity = 5
	const attempts = 25

	ledger := NewMemoryLedger()
	ev := futureEvent(capacity)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0
	fullCount := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successCount++
			case CodeOf(err) == CodeEventFull:
				fullCount++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, successCount, "exactly capacity registrations should succeed")
	assert.Equal(t, attempts-capacity, fullCount)

	count, err := ledger.ActiveCountForEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, count)
}

func TestCancelFreesSeatAndAllowsReRegistration(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(1)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	_, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)

	// The event is full; a second member is turned away.
	_, err = svc.Register(context.Background(), uuid.New(), ev.ID)
	require.Equal(t, CodeEventFull, CodeOf(err))

	require.NoError(t, svc.Cancel(context.Background(), memberID, ev.ID))

	count, err := ledger.ActiveCountForEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The cancelled member can register again for the freed seat.
	reg, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, reg.State)
}

func TestCancelUnknownRegistration(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	err := svc.Cancel(context.Background(), uuid.New(), ev.ID)
	assert.Equal(t, CodeRegistrationNotFound, CodeOf(err))
}

func TestCancelAfterEventStarted(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	_, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return ev.ScheduledAt.Add(time.Minute) }

	err = svc.Cancel(context.Background(), memberID, ev.ID)
	assert.Equal(t, CodeEventAlreadyStarted, CodeOf(err))
}

func TestRateBeforeEventConcludes(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	_, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)

	_, err = svc.Rate(context.Background(), memberID, ev.ID, 5, "great")
	assert.Equal(t, CodeEventNotConcluded, CodeOf(err))
}

func TestRateRecordsAttendanceAndOverwrites(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	memberID := uuid.New()
	_, err := svc.Register(context.Background(), memberID, ev.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return ev.ScheduledAt.Add(time.Hour) }

	reg, err := svc.Rate(context.Background(), memberID, ev.ID, 4, "solid workshop")
	require.NoError(t, err)
	require.NotNil(t, reg.Rating)
	assert.Equal(t, 4, *reg.Rating)
	assert.True(t, reg.Attended)
	assert.Equal(t, "solid workshop", reg.Feedback)

	// Re-rating replaces the earlier score.
	reg, err = svc.Rate(context.Background(), memberID, ev.ID, 2, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, 2, *reg.Rating)
	assert.Equal(t, "changed my mind", reg.Feedback)
}

func TestRateUnknownRegistration(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)
	svc := newTestService(ledger)

	_, err := svc.Rate(context.Background(), uuid.New(), ev.ID, 3, "")
	assert.Equal(t, CodeRegistrationNotFound, CodeOf(err))
}

func TestListForMemberNewestFirst(t *testing.T) {
	ledger := NewMemoryLedger()
	svc := newTestService(ledger)
	memberID := uuid.New()

	var eventIDs []uuid.UUID
	base := time.Now()
	for i := 0; i < 3; i++ {
		ev := futureEvent(5)
		ledger.PutEvent(ev)
		eventIDs = append(eventIDs, ev.ID)

		created := base.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return created }
		_, err := svc.Register(context.Background(), memberID, ev.ID)
		require.NoError(t, err)
	}

	regs, err := svc.ListForMember(context.Background(), memberID)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, eventIDs[2], regs[0].EventID)
	assert.Equal(t, eventIDs[0], regs[2].EventID)
}

func TestConcurrentAdmissionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "capacity")
		attempts := rapid.IntRange(1, 40).Draw(t, "attempts")

		ledger := NewMemoryLedger()
		ev := futureEvent(capacity)
		ledger.PutEvent(ev)
		svc := newTestService(ledger)

		var wg sync.WaitGroup
		var mu sync.Mutex
		successCount := 0

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
				if err == nil {
					mu.Lock()
					successCount++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		want := attempts
		if capacity < attempts {
			want = capacity
		}
		if successCount != want {
			t.Fatalf("expected %d admissions, got %d", want, successCount)
		}

		count, err := ledger.ActiveCountForEvent(context.Background(), ev.ID)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count > capacity {
			t.Fatalf("event overbooked: %d active with capacity %d", count, capacity)
		}
	})
}

func TestAuditFailureDoesNotBlockRegistration(t *testing.T) {
	ledger := NewMemoryLedger()
	ev := futureEvent(5)
	ledger.PutEvent(ev)

	svc := NewService(ledger, failingAudit{}, nil).(*service)

	_, err := svc.Register(context.Background(), uuid.New(), ev.ID)
	assert.NoError(t, err)
}

type failingAudit struct{}

func (failingAudit) Append(ctx context.Context, registrationID uuid.UUID, eventType string, payload interface{}, expectedVersion int) error {
	return fmt.Errorf("audit store unavailable")
}
