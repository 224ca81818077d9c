// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the store and
// service layers from the concrete REST client and cache backends.
package port

import (
	"context"
	"io"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
)

// Resource is the upstream CRUD surface of one entity type.
type Resource[T any] interface {
	List(ctx context.Context, scope domain.Scope, filter domain.Filter) (*domain.Page[T], error)
	Get(ctx context.Context, scope domain.Scope, id string) (T, error)
	Create(ctx context.Context, scope domain.Scope, entity T) (T, error)
	Update(ctx context.Context, scope domain.Scope, id string, entity T) (T, error)
	Delete(ctx context.Context, scope domain.Scope, id string) error
}

// Archiver moves a record into its terminal archived state.
type Archiver interface {
	Archive(ctx context.Context, scope domain.Scope, id string) error
}

// Uploader attaches a document to a record and returns its download URL.
type Uploader interface {
	Upload(ctx context.Context, scope domain.Scope, id, filename string, body io.Reader) (string, error)
}

// InvoiceResource is the invoice endpoint set: CRUD plus archive and upload.
type InvoiceResource interface {
	Resource[domain.Invoice]
	Archiver
	Uploader
}

// TokenSource supplies the bearer token sent upstream.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
