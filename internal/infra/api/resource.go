package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/port"
)

// listEnvelope is the paginated list shape returned by the API.
type listEnvelope[T any] struct {
	Results []T `json:"results"`
	Count   int `json:"count"`
}

// Resource is the CRUD endpoint set of one collection.
type Resource[T any] struct {
	client *Client
	path   func(scope domain.Scope) string
}

var _ port.Resource[domain.Client] = (*Resource[domain.Client])(nil)

func newResource[T any](c *Client, path func(domain.Scope) string) *Resource[T] {
	return &Resource[T]{client: c, path: path}
}

// List returns one page of the collection.
func (r *Resource[T]) List(ctx context.Context, scope domain.Scope, filter domain.Filter) (*domain.Page[T], error) {
	var env listEnvelope[T]
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   r.path(scope) + "/",
		query:  filter.Query(),
	}, &env)
	if err != nil {
		return nil, err
	}
	if env.Results == nil {
		env.Results = []T{}
	}
	total := env.Count
	if total < len(env.Results) {
		total = len(env.Results)
	}
	return &domain.Page[T]{Items: env.Results, Total: total}, nil
}

// Get returns one record.
func (r *Resource[T]) Get(ctx context.Context, scope domain.Scope, id string) (T, error) {
	var out T
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   r.path(scope) + "/" + url.PathEscape(id) + "/",
	}, &out)
	return out, err
}

// Create posts a new record. The request carries an Idempotency-Key so a
// transport-level resend cannot create a duplicate.
func (r *Resource[T]) Create(ctx context.Context, scope domain.Scope, entity T) (T, error) {
	var out T
	err := r.client.do(ctx, request{
		method:     http.MethodPost,
		path:       r.path(scope) + "/",
		body:       entity,
		idempotent: true,
	}, &out)
	return out, err
}

// Update replaces a record.
func (r *Resource[T]) Update(ctx context.Context, scope domain.Scope, id string, entity T) (T, error) {
	var out T
	err := r.client.do(ctx, request{
		method: http.MethodPut,
		path:   r.path(scope) + "/" + url.PathEscape(id) + "/",
		body:   entity,
	}, &out)
	return out, err
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	return r.client.do(ctx, request{
		method: http.MethodDelete,
		path:   r.path(scope) + "/" + url.PathEscape(id) + "/",
	}, nil)
}

// Upload attaches a document to the record and returns its URL.
func (r *Resource[T]) Upload(ctx context.Context, scope domain.Scope, id, filename string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	var out struct {
		URL string `json:"url"`
	}
	err = r.client.do(ctx, request{
		method:      http.MethodPost,
		path:        r.path(scope) + "/" + url.PathEscape(id) + "/documents/",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	return out.URL, err
}

// InvoiceResource adds the archive endpoint to the invoice collection.
type InvoiceResource struct {
	*Resource[domain.Invoice]
}

var _ port.InvoiceResource = (*InvoiceResource)(nil)

// Archive moves the invoice into the read-only archived state.
func (r *InvoiceResource) Archive(ctx context.Context, scope domain.Scope, id string) error {
	return r.client.do(ctx, request{
		method: http.MethodPost,
		path:   r.path(scope) + "/" + url.PathEscape(id) + "/archive/",
	}, nil)
}

func businessPath(scope domain.Scope) string {
	return "/businesses/" + url.PathEscape(scope.BusinessID)
}

// Clients returns the client collection endpoint.
func (c *Client) Clients() *Resource[domain.Client] {
	return newResource[domain.Client](c, func(s domain.Scope) string {
		return businessPath(s) + "/clients"
	})
}

// BankAccounts returns the bank account endpoint; scope.ParentID is the
// owning client.
func (c *Client) BankAccounts() *Resource[domain.BankAccount] {
	return newResource[domain.BankAccount](c, func(s domain.Scope) string {
		return businessPath(s) + "/clients/" + url.PathEscape(s.ParentID) + "/bank-accounts"
	})
}

// Items returns the item collection endpoint.
func (c *Client) Items() *Resource[domain.Item] {
	return newResource[domain.Item](c, func(s domain.Scope) string {
		return businessPath(s) + "/items"
	})
}

// Invoices returns the invoice endpoint set.
func (c *Client) Invoices() *InvoiceResource {
	return &InvoiceResource{newResource[domain.Invoice](c, func(s domain.Scope) string {
		return businessPath(s) + "/invoices"
	})}
}

// Transactions returns the cash/check transaction endpoint.
func (c *Client) Transactions() *Resource[domain.Transaction] {
	return newResource[domain.Transaction](c, func(s domain.Scope) string {
		return businessPath(s) + "/transactions"
	})
}
