package domain

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DateLayout is the wire format of every calendar date exchanged with the API.
const DateLayout = "2006-01-02"

// Entity is any server-owned record held in a collection.
type Entity interface {
	EntityID() string
}

// Scope qualifies a collection fetch or write: the business plus, for
// nested resources, the parent record (e.g. the client owning bank accounts).
type Scope struct {
	BusinessID string `json:"businessId"`
	ParentID   string `json:"parentId,omitempty"`
}

// Key returns a stable string form, used for cache and coalescing keys.
func (s Scope) Key() string {
	if s.ParentID == "" {
		return "b:" + s.BusinessID
	}
	return "b:" + s.BusinessID + "/p:" + s.ParentID
}

// Filter narrows a list fetch. The zero value means "first page, defaults".
type Filter struct {
	Page     int      `json:"page,omitempty"`
	PageSize int      `json:"page_size,omitempty"`
	Search   string   `json:"search,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Archived *bool    `json:"archived,omitempty"`
}

// ActiveInvoices is the default invoice view: archived records excluded.
func ActiveInvoices() Filter {
	archived := false
	return Filter{Archived: &archived}
}

// Query renders the filter as upstream query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if len(f.Tags) > 0 {
		tags := append([]string(nil), f.Tags...)
		sort.Strings(tags)
		q.Set("tags", strings.Join(tags, ","))
	}
	if f.Kind != "" {
		q.Set("type", f.Kind)
	}
	if f.Archived != nil {
		q.Set("archived", strconv.FormatBool(*f.Archived))
	}
	return q
}

// Key is the canonical encoding of the filter; equal filters have equal keys.
func (f Filter) Key() string {
	return f.Query().Encode()
}

// Page is one page of a server-side list result.
type Page[T any] struct {
	Items []T
	Total int
}
