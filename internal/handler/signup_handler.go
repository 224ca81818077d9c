package handler

import (
	"net/http"

	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"go.uber.org/zap"
)

// signupValidateHandler checks the registration form; 204 means it may be
// submitted to the identity provider.
func signupValidateHandler(forms *service.Forms, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /signup/validate")
		defer span.End()

		var draft validation.SignupDraft
		if err := decodeJSON(r, w, &draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		if err := forms.SubmitSignup(ctx, draft); err != nil {
			handleServiceError(w, r, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
