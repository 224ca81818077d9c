package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_RemovesFromActiveList(t *testing.T) {
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1"}, domain.Invoice{ID: "inv2"})
	ic := newInvoiceCollection(t, res)
	_, err := ic.FetchAll(context.Background(), biz, domain.ActiveInvoices())
	require.NoError(t, err)

	result, err := ic.Archive(context.Background(), biz, "inv1")
	require.NoError(t, err)
	assert.True(t, result.Entity.Archived)
	assert.Equal(t, RefreshRequery, result.Policy)
	assert.Equal(t, []string{"inv2"}, ids(result.Snapshot.Items))

	snap, err := ic.FetchAll(context.Background(), biz, domain.ActiveInvoices())
	require.NoError(t, err)
	assert.NotContains(t, ids(snap.Items), "inv1")
}

func TestArchive_RefreshUsesActiveFilterByDefault(t *testing.T) {
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1"}, domain.Invoice{ID: "old", Archived: true})
	ic := newInvoiceCollection(t, res)

	result, err := ic.Archive(context.Background(), biz, "inv1")
	require.NoError(t, err)
	assert.Empty(t, result.Snapshot.Items)
	require.NotNil(t, result.Snapshot.Filter.Archived)
	assert.False(t, *result.Snapshot.Filter.Archived)
}

func TestArchive_RereadFailureKeepsArchivePersisted(t *testing.T) {
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1", Description: "rent"}, domain.Invoice{ID: "inv2"})
	ic := newInvoiceCollection(t, res)
	_, err := ic.FetchAll(context.Background(), biz, domain.ActiveInvoices())
	require.NoError(t, err)
	res.FailGets(errors.New("transient get failure"))

	result, err := ic.Archive(context.Background(), biz, "inv1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh after archive")
	assert.Equal(t, RefreshRequery, result.Policy)
	assert.Equal(t, "inv1", result.Entity.ID)
	assert.Equal(t, "rent", result.Entity.Description)
	assert.True(t, result.Entity.Archived)

	assert.Equal(t, StateLoaded, result.Snapshot.State)
	assert.Equal(t, []string{"inv2"}, ids(result.Snapshot.Items))
	assert.Equal(t, StateLoaded, ic.Snapshot().State)

	for _, inv := range res.Items() {
		if inv.ID == "inv1" {
			assert.True(t, inv.Archived)
		}
	}
}

func TestArchive_AlreadyArchivedIsReadOnly(t *testing.T) {
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1"})
	ic := newInvoiceCollection(t, res)

	_, err := ic.Archive(context.Background(), biz, "inv1")
	require.NoError(t, err)

	_, err = ic.Archive(context.Background(), biz, "inv1")
	var ro *domain.ErrReadOnly
	require.True(t, errors.As(err, &ro))
	assert.Equal(t, "inv1", ro.ID)
	assert.Equal(t, 1, res.ArchiveCalls())
}

func TestUpdate_ArchivedInvoiceRefused(t *testing.T) {
	archived := true
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1", Archived: true, Description: "before"})
	ic := newInvoiceCollection(t, res)
	_, err := ic.FetchAll(context.Background(), biz, domain.Filter{Archived: &archived})
	require.NoError(t, err)

	_, err = ic.Update(context.Background(), biz, "inv1", domain.Invoice{Description: "after"})
	var ro *domain.ErrReadOnly
	require.True(t, errors.As(err, &ro))

	got, err := res.Get(context.Background(), biz, "inv1")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Description)
}

func TestUpdate_ActiveInvoiceAllowed(t *testing.T) {
	res := storetest.NewInvoices(domain.Invoice{ID: "inv1", Description: "before"})
	ic := newInvoiceCollection(t, res)

	result, err := ic.Update(context.Background(), biz, "inv1", domain.Invoice{Description: "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", result.Entity.Description)
}

func TestUpdate_UnknownInvoiceNotFound(t *testing.T) {
	ic := newInvoiceCollection(t, storetest.NewInvoices())

	_, err := ic.Update(context.Background(), biz, "nope", domain.Invoice{})
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
}

func TestUpload_ReturnsURL(t *testing.T) {
	ic := newInvoiceCollection(t, storetest.NewInvoices(domain.Invoice{ID: "inv1"}))

	url, err := ic.Upload(context.Background(), biz, "inv1", "scan.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/inv1/scan.pdf", url)
}
