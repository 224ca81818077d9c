// Package i18n holds the pre-localized message catalog shared by the
// validators, the API client fallback message and the HTTP layer.
// Message keys are the English strings themselves.
package i18n

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported lists the locales with a full catalog. The first one is the default
// unless SetDefault picks another.
var Supported = []language.Tag{language.English, language.Persian}

var (
	cat      = newCatalog()
	matcher  = language.NewMatcher(Supported)
	fallback = Supported[0]
)

// Default returns the locale used when a request names none we support.
func Default() language.Tag {
	return fallback
}

// SetDefault changes the locale used when a request names none we support.
// It reports false and leaves the default unchanged for unsupported tags.
func SetDefault(name string) bool {
	tag, err := language.Parse(name)
	if err != nil {
		return false
	}
	for _, s := range Supported {
		if s == tag {
			fallback = s
			return true
		}
	}
	return false
}

// Message keys.
const (
	MsgRequired       = "This field is required."
	MsgInvalid        = "Invalid value."
	MsgNumber         = "Enter a valid number."
	MsgNumberGTE0     = "Enter a number greater than or equal to zero."
	MsgNumberGT0      = "Enter an amount greater than zero."
	MsgPercent        = "Enter a percentage between 0 and 100."
	MsgDate           = "Enter a date as YYYY-MM-DD."
	MsgOneOf          = "Select one of: %s."
	MsgPasswordMatch  = "Passwords do not match."
	MsgSameClient     = "Origin and destination must be different clients."
	MsgDueBeforeRecv  = "Due date cannot be earlier than the receive date."
	MsgItemsRequired  = "Add at least one item."
	MsgGenericRequest = "Something went wrong. Please try again."
	MsgUnauthorized   = "Your session has expired. Please sign in again."
	MsgDuplicate      = "This value is already in use."
	MsgArchived       = "This invoice is archived and can no longer be edited."
	MsgTooLong        = "This value is too long."
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	fa := map[string]string{
		MsgRequired:       "این فیلد الزامی است.",
		MsgInvalid:        "مقدار نامعتبر است.",
		MsgNumber:         "یک عدد معتبر وارد کنید.",
		MsgNumberGTE0:     "عددی بزرگتر یا مساوی صفر وارد کنید.",
		MsgNumberGT0:      "مبلغی بزرگتر از صفر وارد کنید.",
		MsgPercent:        "درصدی بین ۰ تا ۱۰۰ وارد کنید.",
		MsgDate:           "تاریخ را به صورت YYYY-MM-DD وارد کنید.",
		MsgOneOf:          "یکی از این موارد را انتخاب کنید: %s.",
		MsgPasswordMatch:  "رمز عبور و تکرار آن یکسان نیستند.",
		MsgSameClient:     "مبدا و مقصد نباید یکسان باشند.",
		MsgDueBeforeRecv:  "تاریخ سررسید نمی‌تواند قبل از تاریخ دریافت باشد.",
		MsgItemsRequired:  "حداقل یک قلم اضافه کنید.",
		MsgGenericRequest: "خطایی رخ داد. لطفا دوباره تلاش کنید.",
		MsgUnauthorized:   "نشست شما منقضی شده است. لطفا دوباره وارد شوید.",
		MsgDuplicate:      "این مقدار قبلا استفاده شده است.",
		MsgArchived:       "این فاکتور بایگانی شده و قابل ویرایش نیست.",
		MsgTooLong:        "این مقدار بیش از حد طولانی است.",
	}
	for key, msg := range fa {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Persian, key, msg)
	}
	return b
}

// Printer returns a printer bound to the shared catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// Match picks the best supported locale for an Accept-Language header.
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return Supported[idx]
}

// Sprintf formats key in the given locale.
func Sprintf(tag language.Tag, key string, args ...any) string {
	return Printer(tag).Sprintf(key, args...)
}

type localeKey struct{}

// WithLocale stores the request locale in ctx.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeKey{}, tag)
}

// FromContext returns the locale stored by WithLocale, or the default.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return fallback
}
