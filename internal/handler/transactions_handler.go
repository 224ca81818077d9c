package handler

import (
	"net/http"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// listTransactionsHandler lists transactions, limited to kind when set.
func listTransactionsHandler(forms *service.Forms, kind domain.TransactionKind, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /transactions")
		defer span.End()
		scope := businessScope(r)
		filter := parseFilter(r)
		if kind != "" {
			filter.Kind = string(kind)
		}
		snap, err := service.List(ctx, forms.Workspace(scope.BusinessID).Transactions, scope, filter, wantsRefresh(r))
		writeList(w, r, snap, err, scope, filter, logger)
	}
}

func saveCashHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /transactions/cash")
		defer span.End()

		var draft validation.CashDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		res, err := forms.SubmitCash(ctx, businessScope(r), "", draft)
		writeMutation(w, r, http.StatusCreated, res, err, logger)
	}
}

func saveCheckHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /transactions/check")
		defer span.End()

		var draft validation.CheckDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		res, err := forms.SubmitCheck(ctx, businessScope(r), "", draft)
		writeMutation(w, r, http.StatusCreated, res, err, logger)
	}
}

// transactionBody is the PUT payload; "type" selects the cash or check form.
type transactionBody struct {
	Type domain.TransactionKind `json:"type"`
	validation.CheckDraft
}

func updateTransactionHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /transactions/{id}")
		defer span.End()

		var body transactionBody
		if err := decodeJSON(r, w, &body); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		scope, id := businessScope(r), chi.URLParam(r, "id")
		switch body.Type {
		case domain.TransactionCash:
			res, err := forms.SubmitCash(ctx, scope, id, validation.CashDraft{TransactionDraft: body.TransactionDraft})
			writeMutation(w, r, http.StatusOK, res, err, logger)
		case domain.TransactionCheck:
			res, err := forms.SubmitCheck(ctx, scope, id, body.CheckDraft)
			writeMutation(w, r, http.StatusOK, res, err, logger)
		default:
			handleServiceError(w, r, &domain.ErrValidation{Field: "type", Message: "type must be Cash or Check"}, logger)
		}
	}
}

func deleteTransactionHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /transactions/{id}")
		defer span.End()
		res, err := forms.DeleteTransaction(ctx, businessScope(r), chi.URLParam(r, "id"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}
