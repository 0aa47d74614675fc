// Package events provides typed in-process pub/sub for account state changes.
package events

import "sync"

// ChangeKind describes what kind of account transition produced an event.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeNew
	ChangeUpdated
	ChangeSwitched
	ChangeDeleted
)

// String returns a short name for logging.
func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeUpdated:
		return "updated"
	case ChangeSwitched:
		return "switched"
	case ChangeDeleted:
		return "deleted"
	default:
		return "none"
	}
}

// FieldMask is a bitmask of credential fields touched by a change.
type FieldMask uint32

const (
	FieldAccessToken FieldMask = 1 << iota
	FieldRefreshToken
	FieldInstanceURL
	FieldAPIURL
	FieldDomain
	FieldClientID
	FieldOrgID
	FieldUserID
)

// Has reports whether any bit in f is set in m.
func (m FieldMask) Has(f FieldMask) bool {
	return m&f != 0
}

// CredentialsUpdated is broadcast after any successful credential application.
type CredentialsUpdated struct{}

// AccountCreated carries the sanitized user id of a newly created account.
type AccountCreated struct {
	UserID string
}

// LoginHostChanged carries the host values before and after a host switch.
type LoginHostChanged struct {
	Original string
	Updated  string
}

// UserDataChanged describes which credential fields changed and how the
// account transitioned. Subscribers filter on Fields to ignore changes they
// don't care about.
type UserDataChanged struct {
	Fields FieldMask
	Change ChangeKind
}

// Bus is a synchronous publish/subscribe broker. Delivery happens on the
// publishing goroutine; handlers must not re-enter the mutation that
// triggered them.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(any)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(any))}
}

// Subscription is a handle to an active subscription.
type Subscription struct {
	bus *Bus
	id  int
}

// Subscribe registers fn for every published event. The returned
// Subscription must be canceled when the subscriber goes away.
func (b *Bus) Subscribe(fn func(event any)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs[id] = fn
	return &Subscription{bus: b, id: id}
}

// Cancel removes the subscription. Safe to call more than once, and safe to
// call from inside a handler.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.bus = nil
}

// Publish delivers event to every subscriber, synchronously. The subscriber
// list is snapshotted first so handlers may cancel subscriptions without
// deadlocking.
func (b *Bus) Publish(event any) {
	b.mu.Lock()
	fns := make([]func(any), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
