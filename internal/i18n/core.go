package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/bloopsocial/bloop/internal/realtime"
)

//go:embed translations/*.toml
var translations embed.FS

// XLang is the header carrying an explicit language choice
const XLang = "X-Lang"

// Message ids
const (
	MsgCommentReply = "NotificationCommentReply"
)

var notificationMessages = map[realtime.NotificationType]string{
	realtime.NotifyComment:     "NotificationComment",
	realtime.NotifyFollow:      "NotificationFollow",
	realtime.NotifyMessage:     "NotificationMessage",
	realtime.NotifyReport:      "NotificationReport",
	realtime.NotifyLikeComment: "NotificationLikeComment",
	realtime.NotifyLikePost:    "NotificationLikePost",
}

// I18n manages the translation bundle
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	supported   []language.Tag
	matcher     language.Matcher
}

// New creates a translator with the embedded bundles. Unknown default
// languages fall back to English.
func New(defaultLang string) (*I18n, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		tag = language.English
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(translations, "translations/*.toml")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if _, err := bundle.LoadMessageFileFS(translations, f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	supported := bundle.LanguageTags()
	return &I18n{
		bundle:      bundle,
		defaultLang: tag,
		supported:   supported,
		matcher:     language.NewMatcher(supported),
	}, nil
}

// Translate returns a localized string for the given message id and language
func (i *I18n) Translate(msgID string, lang string, templateData map[string]any) string {
	localizer := i18n.NewLocalizer(i.bundle, lang, i.defaultLang.String())

	lc := &i18n.LocalizeConfig{
		MessageID: msgID,
	}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}

// Message translates msgID into the default language
func (i *I18n) Message(msgID string) string {
	return i.Translate(msgID, i.defaultLang.String(), nil)
}

// NotificationMessage returns the default text of a notification type in the
// default language
func (i *I18n) NotificationMessage(t realtime.NotificationType) string {
	id, ok := notificationMessages[t]
	if !ok {
		return ""
	}
	return i.Translate(id, i.defaultLang.String(), nil)
}

// ForLanguage returns a localizer bound to lang
func (i *I18n) ForLanguage(lang string) realtime.Localizer {
	return boundLocalizer{i: i, lang: lang}
}

// LanguageFromRequest picks the best supported language of r: X-Lang header,
// then Accept-Language, then the default
func (i *I18n) LanguageFromRequest(r *http.Request) string {
	if lang := strings.TrimSpace(r.Header.Get(XLang)); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			_, idx, conf := i.matcher.Match(tag)
			if conf != language.No {
				return baseOf(i.supported[idx])
			}
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		tags, _, err := language.ParseAcceptLanguage(accept)
		if err == nil && len(tags) > 0 {
			_, idx, conf := i.matcher.Match(tags...)
			if conf != language.No {
				return baseOf(i.supported[idx])
			}
		}
	}
	return baseOf(i.defaultLang)
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

type boundLocalizer struct {
	i    *I18n
	lang string
}

func (b boundLocalizer) NotificationMessage(t realtime.NotificationType) string {
	id, ok := notificationMessages[t]
	if !ok {
		return ""
	}
	return b.i.Translate(id, b.lang, nil)
}
