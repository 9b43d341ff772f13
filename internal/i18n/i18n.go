// Package i18n localizes user-facing messages of the API and the terminal client.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Translator holds the loaded message bundle.
type Translator struct {
	bundle   *i18n.Bundle
	fallback language.Tag
	matcher  language.Matcher
}

// New loads all embedded locales with lang as the fallback language.
func New(lang string) (*Translator, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	// The fallback goes first so unmatched requests resolve to it.
	tags := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}

	return &Translator{
		bundle:   bundle,
		fallback: tag,
		matcher:  language.NewMatcher(tags),
	}, nil
}

// Localizer returns a localizer for the preferred languages, most preferred first.
// Entries may be Accept-Language header values.
func (t *Translator) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(t.bundle, append(langs, t.fallback.String())...)
}

// Match returns the best supported language for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	tag, _ := language.MatchStrings(t.matcher, acceptLanguage)
	return tag
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	loc, _ := ctx.Value(ctxKey{}).(*i18n.Localizer)
	return loc
}

// T translates a message by ID with optional template data.
// Missing localizers or messages fall back to the message ID.
func T(ctx context.Context, msgID string, data map[string]any) string {
	return Localize(localizerFromCtx(ctx), msgID, data)
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return LocalizePlural(localizerFromCtx(ctx), msgID, count)
}

// Localize translates msgID with loc.
func Localize(loc *i18n.Localizer, msgID string, data map[string]any) string {
	if loc == nil {
		return msgID
	}
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// LocalizePlural translates a pluralized message with loc. The count is
// available to the template as .Count.
func LocalizePlural(loc *i18n.Localizer, msgID string, count int) string {
	if loc == nil {
		return msgID
	}
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
