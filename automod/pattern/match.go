package pattern

import (
	"regexp"
	"strings"

	"github.com/fedimod/plume/automod/event"
)

// contextText returns the text of the selected context field, and whether the
// context exists for this event kind. A missing context is statically a
// non-match, not an error.
func contextText(evt event.Normalized, ctx event.Context) (string, bool) {
	switch e := evt.(type) {
	case *event.Post:
		switch ctx {
		case event.ContextBody:
			return e.Text, true
		case event.ContextWarning:
			return e.Warning, true
		case event.ContextUsername:
			return e.Author.Acct, true
		}
	case *event.Account:
		switch ctx {
		case event.ContextUsername:
			return e.Acct, true
		case event.ContextDisplayName:
			return e.DisplayName, true
		case event.ContextBio:
			return e.Bio, true
		}
	}
	return "", false
}

// word and regex patterns share the compiled-regexp path
type textMatcher struct {
	re      *regexp.Regexp
	context event.Context
}

func (m *textMatcher) Match(in *Input) bool {
	text, ok := contextText(in.Event, m.context)
	if !ok {
		return false
	}
	return m.re.MatchString(text)
}

type linkDomainMatcher struct {
	domain     string
	subdomains bool
	context    event.Context
}

func (m *linkDomainMatcher) Match(in *Input) bool {
	for _, link := range in.Event.EventLinks() {
		if link.Source != m.context {
			continue
		}
		if link.Host == m.domain || link.RegistrableDomain == m.domain {
			return true
		}
		if m.subdomains && strings.HasSuffix(link.Host, "."+m.domain) {
			return true
		}
	}
	return false
}

type classifierMatcher struct {
	verdict string
}

func (m *classifierMatcher) Match(in *Input) bool {
	return in.ClassifierVerdict != "" && in.ClassifierVerdict == m.verdict
}
