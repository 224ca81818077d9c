package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Options tunes the router.
type Options struct {
	// RateLimit is the per-IP request budget per minute; 0 disables it.
	RateLimit int
	// SSLRedirect redirects plain HTTP to HTTPS.
	SSLRedirect bool
	// Breaker is the upstream circuit breaker reported by /healthz.
	Breaker *gobreaker.CircuitBreaker
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(forms *service.Forms, metrics *observability.Metrics, opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(SecureHeadersMiddleware(opts.SSLRedirect, logger))
	r.Use(LocaleMiddleware)

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Breaker))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.RateLimit))

		r.Get("/metrics/store", storeMetricsHandler(metrics))
		r.Post("/signup/validate", signupValidateHandler(forms, logger))

		r.Route("/businesses/{businessId}", func(r chi.Router) {
			r.Post("/refresh", refreshWorkspaceHandler(forms, logger))

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", listClientsHandler(forms, logger))
				r.Post("/", saveClientHandler(forms, logger))
				r.Get("/{id}", getClientHandler(forms, logger))
				r.Put("/{id}", saveClientHandler(forms, logger))
				r.Delete("/{id}", deleteClientHandler(forms, logger))

				// {id} is the owning client.
				r.Route("/{id}/bank-accounts", func(r chi.Router) {
					r.Get("/", listBankAccountsHandler(forms, logger))
					r.Post("/", saveBankAccountHandler(forms, logger))
					r.Put("/{accountId}", saveBankAccountHandler(forms, logger))
					r.Delete("/{accountId}", deleteBankAccountHandler(forms, logger))
				})
			})

			r.Route("/items", func(r chi.Router) {
				r.Get("/", listItemsHandler(forms, logger))
				r.Post("/", saveItemHandler(forms, logger))
				r.Put("/{id}", saveItemHandler(forms, logger))
				r.Delete("/{id}", deleteItemHandler(forms, logger))
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", listInvoicesHandler(forms, logger))
				r.Post("/", saveInvoiceHandler(forms, logger))
				r.Post("/with-document", createInvoiceWithDocumentHandler(forms, logger))
				r.Get("/{id}", getInvoiceHandler(forms, logger))
				r.Put("/{id}", saveInvoiceHandler(forms, logger))
				r.Delete("/{id}", deleteInvoiceHandler(forms, logger))
				r.Post("/{id}/archive", archiveInvoiceHandler(forms, logger))
				r.Post("/{id}/documents", uploadInvoiceDocumentHandler(forms, logger))
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", listTransactionsHandler(forms, "", logger))
				r.Get("/cash", listTransactionsHandler(forms, domain.TransactionCash, logger))
				r.Get("/check", listTransactionsHandler(forms, domain.TransactionCheck, logger))
				r.Post("/cash", saveCashHandler(forms, logger))
				r.Post("/check", saveCheckHandler(forms, logger))
				r.Put("/{id}", updateTransactionHandler(forms, logger))
				r.Delete("/{id}", deleteTransactionHandler(forms, logger))
			})
		})
	})

	return r
}

// healthzHandler reports the upstream API through its circuit breaker:
// closed is healthy, half-open degraded, open unhealthy.
func healthzHandler(cb *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bizdesk-bfa", Status: "healthy", LastChecked: now},
		}
		if cb != nil {
			status := "healthy"
			switch cb.State() {
			case gobreaker.StateHalfOpen:
				status = "degraded"
			case gobreaker.StateOpen:
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "upstream-api", Status: status, State: cb.State().String(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func storeMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetStoreSnapshot())
	}
}

func refreshWorkspaceHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /businesses/{businessId}/refresh")
		defer span.End()

		ws := forms.Workspace(businessScope(r).BusinessID)
		if err := ws.Refresh(ctx); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"clients":      listResponse(ws.Clients.Snapshot()),
			"items":        listResponse(ws.Items.Snapshot()),
			"invoices":     listResponse(ws.Invoices.Snapshot()),
			"transactions": listResponse(ws.Transactions.Snapshot()),
		})
	}
}
