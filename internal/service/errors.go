package service

import (
	"context"
	"errors"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"
	"github.com/boddenberg/bizdesk-bfa-go/internal/validation"

	"golang.org/x/text/language"
)

// AttributeError maps the structured field errors of an API rejection onto
// form fields. It returns nil when err carries none; such errors belong to
// the action (a banner), not to a field.
func AttributeError(ctx context.Context, err error) validation.Errors {
	var fields []domain.FieldError
	var (
		conflict *domain.ErrConflict
		apiErr   *domain.ErrAPI
	)
	switch {
	case errors.As(err, &conflict):
		fields = conflict.Fields
	case errors.As(err, &apiErr):
		fields = apiErr.Fields
	}
	if len(fields) == 0 {
		return nil
	}

	tag := i18n.FromContext(ctx)
	out := validation.Errors{}
	for _, f := range fields {
		if f.Field == "" {
			continue
		}
		if _, seen := out[f.Field]; seen {
			continue
		}
		out[f.Field] = fieldMessage(tag, f)
	}
	if out.Empty() {
		return nil
	}
	return out
}

// fieldMessage prefers a localized message for well-known codes and falls
// back to the server's text.
func fieldMessage(tag language.Tag, f domain.FieldError) string {
	switch f.Code {
	case "duplicate", "unique":
		return i18n.Sprintf(tag, i18n.MsgDuplicate)
	case "required", "blank":
		return i18n.Sprintf(tag, i18n.MsgRequired)
	case "max_length":
		return i18n.Sprintf(tag, i18n.MsgTooLong)
	}
	if f.Message != "" {
		return f.Message
	}
	return i18n.Sprintf(tag, i18n.MsgInvalid)
}
