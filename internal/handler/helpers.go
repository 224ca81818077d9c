package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Errors validation.Errors `json:"errors,omitempty"`
}

type fieldErrorsResponse struct {
	Errors map[string]string `json:"errors"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON body"}
	}
	return nil
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return
}

// parseFilter reads page, page_size, search, tags, type and archived.
// archived accepts true, false or all.
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	f := domain.Filter{Search: strings.TrimSpace(q.Get("search")), Kind: q.Get("type")}
	f.Page, f.PageSize = parsePagination(r)
	if v := q.Get("tags"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	if v, err := strconv.ParseBool(q.Get("archived")); err == nil {
		f.Archived = &v
	}
	return f
}

func wantsRefresh(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return v
}

func businessScope(r *http.Request) domain.Scope {
	return domain.Scope{BusinessID: chi.URLParam(r, "businessId")}
}

func listResponse[T any](snap store.Snapshot[T]) domain.ListResponse[T] {
	page, pageSize := snap.Filter.Page, snap.Filter.PageSize
	if page == 0 {
		page = 1
	}
	resp := domain.ListResponse[T]{
		Data:     snap.Items,
		Total:    snap.Total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  pageSize > 0 && page*pageSize < snap.Total,
		State:    string(snap.State),
		Version:  snap.Version,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// writeList answers a list read. After a failed fetch the retained items
// are served only when they are the requested view; another scope's or
// filter's items never reach this response.
func writeList[T any](w http.ResponseWriter, r *http.Request, snap store.Snapshot[T], err error, scope domain.Scope, filter domain.Filter, logger *zap.Logger) {
	if err != nil && (len(snap.Items) == 0 || !snap.Shows(scope, filter)) {
		handleServiceError(w, r, err, logger)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(snap))
}

// mutationResponse is the body of every successful write: the entity and
// the list as it stands after the write.
type mutationResponse[T any] struct {
	Data    T                      `json:"data"`
	List    domain.ListResponse[T] `json:"list"`
	Policy  string                 `json:"policy"`
	Warning string                 `json:"warning,omitempty"`
}

// writeMutation answers a store write. A write that reached the server but
// whose list refresh failed still succeeds, with a warning.
func writeMutation[T domain.Entity](w http.ResponseWriter, r *http.Request, status int, res store.MutationResult[T], err error, logger *zap.Logger) {
	persisted := res.Entity.EntityID() != "" && res.Policy == store.RefreshRequery
	if err != nil && !persisted {
		handleServiceError(w, r, err, logger)
		return
	}
	body := mutationResponse[T]{
		Data:   res.Entity,
		List:   listResponse(res.Snapshot),
		Policy: string(res.Policy),
	}
	if err != nil {
		logger.Warn("write persisted, refresh failed", zap.Error(err))
		body.Warning = err.Error()
	}
	writeJSON(w, status, body)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	ctx := r.Context()
	tag := i18n.FromContext(ctx)

	var fieldErrs *domain.ErrFieldErrors
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService
	var invalid *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict
	var apiErr *domain.ErrAPI
	var readOnly *domain.ErrReadOnly
	var superseded *domain.ErrSuperseded

	switch {
	case errors.As(err, &fieldErrs):
		logger.Debug("draft rejected", zap.Int("fields", len(fieldErrs.Errors)))
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{Errors: fieldErrs.Errors})
	case errors.As(err, &invalid):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, i18n.Sprintf(tag, i18n.MsgUnauthorized))
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &readOnly):
		logger.Debug("read-only record", zap.String("id", readOnly.ID))
		writeError(w, http.StatusConflict, i18n.Sprintf(tag, i18n.MsgArchived))
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, errorResponse{Error: localizeGeneric(tag, conflict.Message), Errors: service.AttributeError(ctx, err)})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			logger.Error("upstream error", zap.Int("status", apiErr.Status), zap.Error(err))
			status = http.StatusBadGateway
		} else {
			logger.Debug("upstream rejected request", zap.Int("status", apiErr.Status), zap.String("error", apiErr.Message))
		}
		writeJSON(w, status, errorResponse{Error: localizeGeneric(tag, apiErr.Message), Errors: service.AttributeError(ctx, err)})
	case errors.As(err, &superseded):
		logger.Debug("superseded", zap.String("collection", superseded.Collection))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, i18n.Sprintf(tag, i18n.MsgGenericRequest))
	case errors.As(err, &external):
		logger.Error("upstream unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, i18n.Sprintf(tag, i18n.MsgGenericRequest))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, i18n.Sprintf(tag, i18n.MsgGenericRequest))
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// localizeGeneric translates the client's fallback message; server text
// passes through unchanged.
func localizeGeneric(tag language.Tag, msg string) string {
	if msg == i18n.MsgGenericRequest {
		return i18n.Sprintf(tag, msg)
	}
	return msg
}
