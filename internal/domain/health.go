package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	State       string `json:"state,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// StoreMetrics is returned by GET /v1/metrics/store.
type StoreMetrics struct {
	Fetches        int64   `json:"fetches"`
	FetchErrors    int64   `json:"fetchErrors"`
	Mutations      int64   `json:"mutations"`
	MutationErrors int64   `json:"mutationErrors"`
	Superseded     int64   `json:"superseded"`
	ErrorRate      float64 `json:"errorRate"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	UpstreamErrors int64   `json:"upstreamErrors"`
	Unauthorized   int64   `json:"unauthorized"`
	Period         string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse is the view of one collection served to the frontend.
type ListResponse[T any] struct {
	Data     []T    `json:"data"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	HasMore  bool   `json:"has_more"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
	Version  uint64 `json:"version"`
}
