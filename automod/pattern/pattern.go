// Package pattern implements the match predicates rules are built from.
// Pattern specs come from configuration and are compiled once at load time;
// compiled matchers are pure and safe for concurrent use.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fedimod/plume/automod/event"
)

// Spec is the configuration form of a single pattern. Exactly one of Word,
// Regex, LinkDomain, or Classifier must be set.
type Spec struct {
	// Word matches the context text case-insensitively. Substring semantics
	// unless WholeWord is set.
	Word string `yaml:"word,omitempty"`
	// Regex is applied to the context text with standard Go regexp semantics.
	Regex string `yaml:"regex,omitempty"`
	// LinkDomain matches URLs discovered in the context text by domain.
	LinkDomain string `yaml:"link_domain,omitempty"`
	// Classifier matches the verdict of the external content classifier, if
	// one is configured. Never matches when the classifier is absent.
	Classifier string `yaml:"classifier,omitempty"`

	// Context selects the event field tested. Defaults to body.
	Context string `yaml:"context,omitempty"`
	// WholeWord restricts Word matches to word boundaries.
	WholeWord bool `yaml:"whole_word,omitempty"`
	// IncludeSubdomains extends LinkDomain to subdomains of the configured
	// domain. Default is exact host or registrable-domain equality.
	IncludeSubdomains bool `yaml:"include_subdomains,omitempty"`
}

// Input is everything one evaluation pass matches against: the normalized
// event plus the optional classifier verdict for it.
type Input struct {
	Event event.Normalized
	// ClassifierVerdict is empty when no classifier is configured or it
	// did not return a verdict.
	ClassifierVerdict string
}

// Matcher is a compiled pattern. Match is pure: no I/O, no side effects.
type Matcher interface {
	Match(in *Input) bool
}

func (s *Spec) kind() string {
	switch {
	case s.Word != "":
		return "word"
	case s.Regex != "":
		return "regex"
	case s.LinkDomain != "":
		return "link_domain"
	case s.Classifier != "":
		return "classifier"
	}
	return ""
}

// Compile validates the spec and builds a matcher. All validation errors
// (bad regex, ambiguous kind, unknown context) surface here, at load time.
func (s *Spec) Compile() (Matcher, error) {
	set := 0
	for _, v := range []string{s.Word, s.Regex, s.LinkDomain, s.Classifier} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("pattern must set exactly one of word, regex, link_domain, classifier")
	}

	if s.Classifier != "" {
		if s.Context != "" {
			return nil, fmt.Errorf("classifier pattern takes no context")
		}
		if s.WholeWord || s.IncludeSubdomains {
			return nil, fmt.Errorf("classifier pattern takes no match flags")
		}
		return &classifierMatcher{verdict: s.Classifier}, nil
	}

	ctx, err := event.ParseContext(s.Context)
	if err != nil {
		return nil, err
	}

	switch s.kind() {
	case "word":
		if s.IncludeSubdomains {
			return nil, fmt.Errorf("include_subdomains only applies to link_domain patterns")
		}
		expr := regexp.QuoteMeta(s.Word)
		if s.WholeWord {
			expr = `\b` + expr + `\b`
		}
		re, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return nil, fmt.Errorf("compiling word pattern %q: %w", s.Word, err)
		}
		return &textMatcher{re: re, context: ctx}, nil
	case "regex":
		if s.WholeWord || s.IncludeSubdomains {
			return nil, fmt.Errorf("match flags do not apply to regex patterns")
		}
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return nil, fmt.Errorf("compiling regex pattern %q: %w", s.Regex, err)
		}
		return &textMatcher{re: re, context: ctx}, nil
	case "link_domain":
		if s.WholeWord {
			return nil, fmt.Errorf("whole_word only applies to word patterns")
		}
		domain := strings.TrimSuffix(strings.ToLower(s.LinkDomain), ".")
		if domain == "" || strings.ContainsAny(domain, "/ ") {
			return nil, fmt.Errorf("invalid link_domain: %q", s.LinkDomain)
		}
		return &linkDomainMatcher{
			domain:     domain,
			subdomains: s.IncludeSubdomains,
			context:    ctx,
		}, nil
	}
	// unreachable; the kind count check above covers this
	return nil, fmt.Errorf("empty pattern")
}
