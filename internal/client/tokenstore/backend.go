package tokenstore

import "context"

// Slot names. They are part of the persisted format.
const (
	SlotAccess   = "access"
	SlotRefresh  = "refresh"
	SlotIdentity = "identity"
)

var allSlots = []string{SlotAccess, SlotRefresh, SlotIdentity}

// Backend is raw durable slot storage.
//
// Load returns every present slot (missing slots are simply absent from the
// map). Save writes all given slots atomically. Remove deletes all slots and
// is idempotent.
type Backend interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, values map[string][]byte) error
	Remove(ctx context.Context) error
	Close() error
}
