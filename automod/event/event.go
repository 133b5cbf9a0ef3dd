// Package event decodes Mastodon webhook payloads into normalized in-memory
// events for rule evaluation.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIgnored indicates a recognized webhook event kind which this service does
// not act on (reports, unknown types). Callers must treat it as a no-op, not a
// failure.
var ErrIgnored = errors.New("ignored event kind")

// Context identifies which normalized field of an event a pattern is tested
// against.
type Context string

const (
	ContextBody        = Context("body")
	ContextWarning     = Context("warning")
	ContextUsername    = Context("username")
	ContextDisplayName = Context("display_name")
	ContextBio         = Context("bio")
)

// ParseContext validates a configured context name. Empty defaults to body.
func ParseContext(raw string) (Context, error) {
	switch Context(raw) {
	case "":
		return ContextBody, nil
	case ContextBody, ContextWarning, ContextUsername, ContextDisplayName, ContextBio:
		return Context(raw), nil
	}
	return "", fmt.Errorf("unknown pattern context: %q", raw)
}

type Kind string

const (
	KindPost    = Kind("post")
	KindAccount = Kind("account")
)

// Link is one URL discovered in an event's text, with its hostname and
// registrable domain (eTLD+1) pre-resolved for domain matching. Source records
// which context field the URL was found in.
type Link struct {
	Raw               string
	Host              string
	RegistrableDomain string
	Source            Context
}

// AccountRef carries enough identity to target a moderation action without a
// second lookup.
type AccountRef struct {
	ID    string
	Acct  string
	Local bool
}

// Normalized is a decoded webhook event: either a *Post or an *Account.
type Normalized interface {
	EventKind() Kind
	// Target is the account moderation actions apply to.
	Target() AccountRef
	// EventLinks are all URLs discovered in the event's text fields.
	EventLinks() []Link
}

// Post is a new or edited status.
type Post struct {
	ID      string
	Author  AccountRef
	Text    string
	Warning string
	Links   []Link
}

func (p *Post) EventKind() Kind    { return KindPost }
func (p *Post) Target() AccountRef { return p.Author }
func (p *Post) EventLinks() []Link { return p.Links }

// Account is a created, approved, or updated account.
type Account struct {
	ID          string
	Acct        string
	DisplayName string
	Bio         string
	Local       bool
	Links       []Link
}

func (a *Account) EventKind() Kind { return KindAccount }
func (a *Account) Target() AccountRef {
	return AccountRef{ID: a.ID, Acct: a.Acct, Local: a.Local}
}
func (a *Account) EventLinks() []Link { return a.Links }

// webhook delivery envelope: a tagged event name plus the API object
type envelope struct {
	Event     string          `json:"event"`
	CreatedAt string          `json:"created_at"`
	Object    json.RawMessage `json:"object"`
}

// subset of the Mastodon status entity that rules evaluate
type apiStatus struct {
	ID               string     `json:"id"`
	Account          apiAccount `json:"account"`
	Content          string     `json:"content"`
	SpoilerText      string     `json:"spoiler_text"`
	MediaAttachments []struct {
		Description string `json:"description"`
	} `json:"media_attachments"`
	Poll *struct {
		Options []struct {
			Title string `json:"title"`
		} `json:"options"`
	} `json:"poll"`
}

// subset of the Mastodon account entity
type apiAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Note        string `json:"note"`
	Fields      []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"fields"`
}

// account events deliver the admin-scoped account entity, which wraps the
// public one
type apiAdminAccount struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Domain   *string    `json:"domain"`
	Account  apiAccount `json:"account"`
}
