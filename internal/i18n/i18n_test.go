package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.Persian, Match("fa-IR,fa;q=0.9,en;q=0.5"))
	assert.Equal(t, language.English, Match("en-US"))
	assert.Equal(t, language.English, Match("de-DE"))
	assert.Equal(t, language.English, Match(""))
}

func TestSprintf_Localized(t *testing.T) {
	assert.Equal(t, MsgRequired, Sprintf(language.English, MsgRequired))
	assert.Equal(t, "این فیلد الزامی است.", Sprintf(language.Persian, MsgRequired))
	assert.Equal(t, "Select one of: a, b.", Sprintf(language.English, MsgOneOf, "a, b"))
}

func TestSetDefault(t *testing.T) {
	t.Cleanup(func() { SetDefault("en") })

	assert.False(t, SetDefault("de"))
	assert.Equal(t, language.English, Match(""))

	assert.True(t, SetDefault("fa"))
	assert.Equal(t, language.Persian, Match(""))
	assert.Equal(t, language.Persian, FromContext(context.Background()))
}

func TestWithLocale(t *testing.T) {
	ctx := WithLocale(context.Background(), language.Persian)
	assert.Equal(t, language.Persian, FromContext(ctx))
}
