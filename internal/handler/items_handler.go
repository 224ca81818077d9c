package handler

import (
	"net/http"

	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func listItemsHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /items")
		defer span.End()
		scope := businessScope(r)
		filter := parseFilter(r)
		snap, err := service.List(ctx, forms.Workspace(scope.BusinessID).Items, scope, filter, wantsRefresh(r))
		writeList(w, r, snap, err, scope, filter, logger)
	}
}

func saveItemHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /items")
		defer span.End()

		var draft validation.ItemDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		id := chi.URLParam(r, "id")
		res, err := forms.SubmitItem(ctx, businessScope(r), id, draft)
		writeMutation(w, r, createdOrOK(id), res, err, logger)
	}
}

func deleteItemHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /items/{id}")
		defer span.End()
		res, err := forms.DeleteItem(ctx, businessScope(r), chi.URLParam(r, "id"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}
