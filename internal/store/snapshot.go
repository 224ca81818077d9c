package store

import "github.com/boddenberg/bizdesk-bfa-go/internal/domain"

// State is the lifecycle of a collection.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// Snapshot is an immutable view of a collection. Items is a copy; callers
// may keep it.
type Snapshot[T any] struct {
	State  State
	Items  []T
	Total  int
	Err    error
	Scope  domain.Scope
	Filter domain.Filter
	// Version increases on every state change.
	Version uint64
}

// Shows reports whether the snapshot holds the view of scope and filter,
// successful or not.
func (s Snapshot[T]) Shows(scope domain.Scope, filter domain.Filter) bool {
	return s.Scope == scope && s.Filter.Key() == filter.Key()
}

// RefreshPolicy says how a mutation brought the list back in sync.
type RefreshPolicy string

const (
	// RefreshRequery re-fetched the whole list from the server.
	RefreshRequery RefreshPolicy = "requery"
	// RefreshLocalRemove dropped the id from the local list without a fetch.
	RefreshLocalRemove RefreshPolicy = "local-remove"
)

// MutationResult is returned by every write.
type MutationResult[T any] struct {
	Entity   T
	Policy   RefreshPolicy
	Snapshot Snapshot[T]
}
