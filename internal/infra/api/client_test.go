package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/resilience"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var scope = domain.Scope{BusinessID: "b1"}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return NewClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("api-test"), cfg, opts, zap.NewNop())
}

func TestList_DecodesEnvelopeAndQuery(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/businesses/b1/clients/", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":   7,
			"results": []map[string]any{{"id": "c1", "fullname": "Sara"}, {"id": "c2", "fullname": "Reza"}},
		})
	}, Options{})

	page, err := c.Clients().List(context.Background(), scope, domain.Filter{Page: 2, PageSize: 2, Search: "sa"})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Sara", page.Items[0].FullName)
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "search=sa")
}

func TestList_EmptyResultsNeverNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0}`))
	}, Options{})

	page, err := c.Items().List(context.Background(), scope, domain.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestBankAccounts_NestedPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/businesses/b1/clients/c9/bank-accounts/", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":0,"results":[]}`))
	}, Options{})

	_, err := c.BankAccounts().List(context.Background(), domain.Scope{BusinessID: "b1", ParentID: "c9"}, domain.Filter{})
	require.NoError(t, err)
}

func TestCreate_SendsIdempotencyKeyAndBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		var body domain.Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body.ID = "i1"
		_ = json.NewEncoder(w).Encode(body)
	}, Options{Tokens: StaticToken("opaque-token")})

	out, err := c.Items().Create(context.Background(), scope, domain.Item{Name: "Pen", Kind: domain.ItemMerchandise})
	require.NoError(t, err)
	assert.Equal(t, "i1", out.ID)
	assert.Equal(t, "Pen", out.Name)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "404 not found",
			status: http.StatusNotFound,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				var nf *domain.ErrNotFound
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, "items", nf.Resource)
				assert.Equal(t, "i1", nf.ID)
			},
		},
		{
			name:   "409 conflict with fields",
			status: http.StatusConflict,
			body:   `{"detail":"duplicate","errors":[{"field":"nationalCode","code":"duplicate"}]}`,
			check: func(t *testing.T, err error) {
				var ce *domain.ErrConflict
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, "duplicate", ce.Message)
				require.Len(t, ce.Fields, 1)
				assert.Equal(t, "nationalCode", ce.Fields[0].Field)
			},
		},
		{
			name:   "400 verbatim server message",
			status: http.StatusBadRequest,
			body:   `{"error":"price must be positive"}`,
			check: func(t *testing.T, err error) {
				var ae *domain.ErrAPI
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, http.StatusBadRequest, ae.Status)
				assert.Equal(t, "price must be positive", ae.Message)
			},
		},
		{
			name:   "400 without text falls back to generic message",
			status: http.StatusBadRequest,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				var ae *domain.ErrAPI
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, "something went wrong", ae.Message)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, Options{GenericMessage: "something went wrong"})

			_, err := c.Items().Get(context.Background(), scope, "i1")
			require.Error(t, err)
			tc.check(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
		})
	}
}

func TestUnauthorized_FiresHook(t *testing.T) {
	var fired int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token invalid"}`))
	}, Options{OnUnauthorized: func() { atomic.AddInt32(&fired, 1) }})

	err := c.Clients().Delete(context.Background(), scope, "c1")
	var ue *domain.ErrUnauthorized
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "token invalid", ue.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestExpiredToken_RejectedLocally(t *testing.T) {
	var calls, fired int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, Options{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	c.opts.Tokens = StaticToken(signed)
	c.opts.OnUnauthorized = func() { atomic.AddInt32(&fired, 1) }

	_, err = c.Clients().List(context.Background(), scope, domain.Filter{})
	var ue *domain.ErrUnauthorized
	require.True(t, errors.As(err, &ue))
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"c1","fullname":"Sara"}`))
	}, Options{})

	out, err := c.Clients().Get(context.Background(), scope, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Sara", out.FullName)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWrites_NeverRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Options{})

	_, err := c.Clients().Update(context.Background(), scope, "c1", domain.Client{FullName: "x"})
	var ae *domain.ErrAPI
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusServiceUnavailable, ae.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCircuitOpen(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Options{})

	for i := 0; i < 5; i++ {
		_ = c.Transactions().Delete(context.Background(), scope, "t1")
	}
	err := c.Transactions().Delete(context.Background(), scope, "t1")
	var co *domain.ErrCircuitOpen
	require.True(t, errors.As(err, &co))
	assert.Equal(t, "api-test", co.Service)
}

func TestInvoiceArchiveAndUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/businesses/b1/invoices/inv1/archive/":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusNoContent)
		case "/businesses/b1/invoices/inv1/documents/":
			require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			f, hdr, err := r.FormFile("document")
			require.NoError(t, err)
			defer f.Close()
			raw, _ := io.ReadAll(f)
			assert.Equal(t, "scan.pdf", hdr.Filename)
			assert.Equal(t, "%PDF", string(raw))
			_, _ = w.Write([]byte(`{"url":"https://files.example/inv1.pdf"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, Options{})

	inv := c.Invoices()
	require.NoError(t, inv.Archive(context.Background(), scope, "inv1"))

	u, err := inv.Upload(context.Background(), scope, "inv1", "scan.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/inv1.pdf", u)
}

func TestTransportError_IsExternalService(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond}
	c := NewClient(http.DefaultClient, "http://127.0.0.1:1", resilience.NewCircuitBreaker("down"), cfg, Options{}, zap.NewNop())

	_, err := c.Items().Get(context.Background(), scope, "i1")
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext))
}
