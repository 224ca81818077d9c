package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxDocumentBytes = 10 << 20

// listInvoicesHandler shows active invoices unless ?archived= is given.
func listInvoicesHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /invoices")
		defer span.End()
		scope := businessScope(r)
		filter := parseFilter(r)
		if r.URL.Query().Get("archived") == "" {
			filter.Archived = domain.ActiveInvoices().Archived
		}
		snap, err := service.List(ctx, forms.Workspace(scope.BusinessID).Invoices.Collection, scope, filter, wantsRefresh(r))
		writeList(w, r, snap, err, scope, filter, logger)
	}
}

func getInvoiceHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /invoices/{id}")
		defer span.End()
		scope := businessScope(r)
		inv, err := forms.Workspace(scope.BusinessID).Invoices.Get(ctx, scope, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func saveInvoiceHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /invoices")
		defer span.End()

		var draft validation.InvoiceDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		id := chi.URLParam(r, "id")
		res, err := forms.SubmitInvoice(ctx, businessScope(r), id, draft)
		writeMutation(w, r, createdOrOK(id), res, err, logger)
	}
}

func archiveInvoiceHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /invoices/{id}/archive")
		defer span.End()
		res, err := forms.ArchiveInvoice(ctx, businessScope(r), chi.URLParam(r, "id"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}

func deleteInvoiceHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /invoices/{id}")
		defer span.End()
		res, err := forms.DeleteInvoice(ctx, businessScope(r), chi.URLParam(r, "id"))
		writeMutation(w, r, http.StatusOK, res, err, logger)
	}
}

// uploadInvoiceDocumentHandler takes a multipart form with a "document" file.
func uploadInvoiceDocumentHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /invoices/{id}/documents")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
		file, hdr, err := r.FormFile("document")
		if err != nil {
			handleServiceError(w, r, &domain.ErrValidation{Field: "document", Message: "a document file is required"}, logger)
			return
		}
		defer file.Close()

		url, err := forms.UploadInvoiceDocument(ctx, businessScope(r), chi.URLParam(r, "id"), hdr.Filename, file)
		if err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// createInvoiceWithDocumentHandler takes a multipart form with the invoice
// draft as JSON in "invoice" and the file in "document". When the upload
// fails after the invoice was created, the invoice is returned with 207
// and the upload error.
func createInvoiceWithDocumentHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /invoices/with-document")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
		var draft validation.InvoiceDraft
		if err := json.Unmarshal([]byte(r.FormValue("invoice")), &draft); err != nil {
			handleServiceError(w, r, &domain.ErrValidation{Field: "invoice", Message: "invalid invoice JSON"}, logger)
			return
		}
		file, hdr, err := r.FormFile("document")
		if err != nil {
			handleServiceError(w, r, &domain.ErrValidation{Field: "document", Message: "a document file is required"}, logger)
			return
		}
		defer file.Close()

		inv, err := forms.CreateInvoiceWithAttachment(ctx, businessScope(r), draft, hdr.Filename, file)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, inv)
		case inv.ID != "":
			logger.Warn("invoice created without document", zap.String("invoice_id", inv.ID), zap.Error(err))
			writeJSON(w, http.StatusMultiStatus, map[string]any{"data": inv, "warning": err.Error()})
		default:
			handleServiceError(w, r, err, logger)
		}
	}
}
