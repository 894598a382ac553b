// internal/registration/ledger_memory.go
package registration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-memory Ledger for tests and local development. The
// per-event critical section is a mutex keyed by event ID.
type MemoryLedger struct {
	mu         sync.Mutex
	events     map[uuid.UUID]EventSnapshot
	eventLocks map[uuid.UUID]*sync.Mutex
	records    map[uuid.UUID]*Registration
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		events:     make(map[uuid.UUID]EventSnapshot),
		eventLocks: make(map[uuid.UUID]*sync.Mutex),
		records:    make(map[uuid.UUID]*Registration),
	}
}

// PutEvent seeds or replaces an event snapshot.
func (l *MemoryLedger) PutEvent(ev EventSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[ev.ID] = ev
	if _, ok := l.eventLocks[ev.ID]; !ok {
		l.eventLocks[ev.ID] = &sync.Mutex{}
	}
}

type memoryEventTx struct {
	ledger  *MemoryLedger
	eventID uuid.UUID
}

func (m *memoryEventTx) ActiveCount(ctx context.Context) (int, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return m.ledger.activeCountLocked(m.eventID), nil
}

func (m *memoryEventTx) ActiveRegistration(ctx context.Context, memberID uuid.UUID) (*Registration, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	if reg := m.ledger.activeRegistrationLocked(memberID, m.eventID); reg != nil {
		copied := *reg
		return &copied, nil
	}
	return nil, ErrRegistrationMissing
}

func (m *memoryEventTx) Insert(ctx context.Context, reg *Registration) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	if m.ledger.activeRegistrationLocked(reg.MemberID, m.eventID) != nil {
		return ErrDuplicateActive
	}
	copied := *reg
	m.ledger.records[reg.ID] = &copied
	return nil
}

func (l *MemoryLedger) WithinEvent(ctx context.Context, eventID uuid.UUID, fn func(ev EventSnapshot, tx EventTx) error) error {
	l.mu.Lock()
	ev, ok := l.events[eventID]
	if !ok {
		l.mu.Unlock()
		return ErrEventMissing
	}
	lock := l.eventLocks[eventID]
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ev, &memoryEventTx{ledger: l, eventID: eventID})
}

func (l *MemoryLedger) Event(ctx context.Context, eventID uuid.UUID) (*EventSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.events[eventID]
	if !ok {
		return nil, ErrEventMissing
	}
	copied := ev
	return &copied, nil
}

func (l *MemoryLedger) ActiveRegistration(ctx context.Context, memberID, eventID uuid.UUID) (*Registration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reg := l.activeRegistrationLocked(memberID, eventID); reg != nil {
		copied := *reg
		return &copied, nil
	}
	return nil, ErrRegistrationMissing
}

func (l *MemoryLedger) ActiveCountForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeCountLocked(eventID), nil
}

func (l *MemoryLedger) ListActiveForMember(ctx context.Context, memberID uuid.UUID) ([]*Registration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var regs []*Registration
	for _, reg := range l.records {
		if reg.MemberID == memberID && reg.State == StateActive {
			copied := *reg
			regs = append(regs, &copied)
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
	return regs, nil
}

func (l *MemoryLedger) Update(ctx context.Context, reg *Registration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.records[reg.ID]
	if !ok {
		return ErrRegistrationMissing
	}
	if current.Version != reg.Version {
		return ErrVersionConflict
	}
	copied := *reg
	copied.Version++
	copied.UpdatedAt = time.Now().UTC()
	l.records[reg.ID] = &copied
	reg.Version++
	return nil
}

func (l *MemoryLedger) activeCountLocked(eventID uuid.UUID) int {
	count := 0
	for _, reg := range l.records {
		if reg.EventID == eventID && reg.State == StateActive {
			count++
		}
	}
	return count
}

func (l *MemoryLedger) activeRegistrationLocked(memberID, eventID uuid.UUID) *Registration {
	for _, reg := range l.records {
		if reg.MemberID == memberID && reg.EventID == eventID && reg.State == StateActive {
			return reg
		}
	}
	return nil
}
