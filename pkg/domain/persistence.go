package domain

import "context"

// RefKind selects one of the reference-data lists.
type RefKind string

const (
	RefRegions   RefKind = "regions"
	RefExecutors RefKind = "executors"
)

// Entity maps the list to the entity name used in errors.
func (k RefKind) Entity() EntityType {
	if k == RefExecutors {
		return EntityExecutor
	}
	return EntityRegion
}

// Valid reports whether k names a known list.
func (k RefKind) Valid() bool { return k == RefRegions || k == RefExecutors }

// ProtocolStore persists protocols. CreateProtocol assigns the id.
type ProtocolStore interface {
	ListProtocols(ctx context.Context) ([]Protocol, error)
	GetProtocol(ctx context.Context, id int64) (Protocol, error)
	CreateProtocol(ctx context.Context, p Protocol) (Protocol, error)
	UpdateProtocol(ctx context.Context, p Protocol) (Protocol, error)
	DeleteProtocol(ctx context.Context, id int64) error
}

// ReferenceStore persists the region and executor name lists. Names are
// unique per list; AddReference rejects duplicates with a ValidationError and
// DeleteReference reports unknown names with a NotFoundError.
type ReferenceStore interface {
	ListReference(ctx context.Context, kind RefKind) ([]string, error)
	AddReference(ctx context.Context, kind RefKind, name string) error
	DeleteReference(ctx context.Context, kind RefKind, name string) error
}

// PersistentStore is the full storage surface used by the service layer.
type PersistentStore interface {
	ProtocolStore
	ReferenceStore
	Close() error
}
