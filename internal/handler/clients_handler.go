package handler

import (
	"net/http"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Clients & Bank Accounts Handlers
// ============================================================

func listClientsHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /clients")
		defer span.End()
		scope := businessScope(r)
		filter := parseFilter(r)
		snap, err := service.List(ctx, forms.Workspace(scope.BusinessID).Clients, scope, filter, wantsRefresh(r))
		writeList(w, r, snap, err, scope, filter, logger)
	}
}

func getClientHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /clients/{id}")
		defer span.End()
		scope := businessScope(r)
		client, err := forms.Workspace(scope.BusinessID).Clients.Get(ctx, scope, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

// saveClientHandler serves both POST (create) and PUT /{id} (update).
func saveClientHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /clients")
		defer span.End()

		var draft validation.ClientDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		id := chi.URLParam(r, "id")
		res, err := forms.SubmitClient(ctx, businessScope(r), id, draft)
		writeMutation(w, r, createdOrOK(id), res, err, logger)
	}
}

func deleteClientHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /clients/{id}")
		defer span.End()
		res, err := forms.DeleteClient(ctx, businessScope(r), chi.URLParam(r, "id"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}

func listBankAccountsHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /clients/{id}/bank-accounts")
		defer span.End()
		scope := accountScope(r)
		filter := parseFilter(r)
		snap, err := service.List(ctx, forms.Workspace(scope.BusinessID).BankAccounts, scope, filter, wantsRefresh(r))
		writeList(w, r, snap, err, scope, filter, logger)
	}
}

func saveBankAccountHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /clients/{id}/bank-accounts")
		defer span.End()

		var draft validation.BankAccountDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		id := chi.URLParam(r, "accountId")
		res, err := forms.SubmitBankAccount(ctx, accountScope(r), id, draft)
		writeMutation(w, r, createdOrOK(id), res, err, logger)
	}
}

func deleteBankAccountHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /clients/{id}/bank-accounts/{accountId}")
		defer span.End()
		res, err := forms.DeleteBankAccount(ctx, accountScope(r), chi.URLParam(r, "accountId"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}

func accountScope(r *http.Request) domain.Scope {
	scope := businessScope(r)
	scope.ParentID = chi.URLParam(r, "id")
	return scope
}

func createdOrOK(id string) int {
	if id == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}
