package event

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/publicsuffix"
)

// matches bare http(s) URLs in plain text
var textURLPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

func extractTextURLs(raw string) []string {
	return textURLPattern.FindAllString(raw, -1)
}

// resolveLinks normalizes raw URLs and resolves each to a hostname and
// registrable domain, tagging them with the context they were found in.
// Unparseable or non-HTTP URLs are dropped. Output is deduplicated.
func resolveLinks(source Context, rawURLs []string) []Link {
	var out []Link
	seen := make(map[string]bool)
	for _, raw := range rawURLs {
		clean, err := purell.NormalizeURLString(raw, purell.FlagsSafe)
		if err != nil {
			clean = raw
		}
		u, err := url.Parse(clean)
		if err != nil {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
		if host == "" {
			continue
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true

		reg, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			// IP addresses and bare TLDs have no registrable domain;
			// fall back to the host itself
			reg = host
		}
		out = append(out, Link{
			Raw:               clean,
			Host:              host,
			RegistrableDomain: reg,
			Source:            source,
		})
	}
	return out
}
