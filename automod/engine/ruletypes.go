package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fedimod/plume/automod/event"
	"github.com/fedimod/plume/automod/pattern"
)

// RestrictKind is a moderation action applied to an account.
type RestrictKind string

const (
	RestrictNone      = RestrictKind("")
	RestrictSensitive = RestrictKind("sensitive")
	RestrictDisable   = RestrictKind("disable")
	RestrictSilence   = RestrictKind("silence")
	RestrictSuspend   = RestrictKind("suspend")
)

func ParseRestrictKind(raw string) (RestrictKind, error) {
	switch RestrictKind(raw) {
	case RestrictSensitive, RestrictDisable, RestrictSilence, RestrictSuspend:
		return RestrictKind(raw), nil
	}
	return RestrictNone, fmt.Errorf("unknown restrict action: %q", raw)
}

// ReportSpec configures the report a rule files when it triggers.
type ReportSpec struct {
	// Forward the report to the author's home server.
	Forward bool
	// RuleIDs are server rule identifiers the report cites. When non-empty
	// the report is categorized as a rule violation and Spam is ignored.
	RuleIDs []string
	// Spam categorizes the report as spam (unless RuleIDs is set).
	Spam bool
}

// Rule is one named, ordered entry in a bot account's rule list. Patterns are
// OR-combined: the rule triggers if any pattern matches. A rule with neither
// Report nor Restrict is rejected at load time.
type Rule struct {
	Name     string
	Patterns []pattern.Matcher
	Report   *ReportSpec
	Restrict RestrictKind
}

// BotAccount is a moderator identity on an instance, with its ordered rules
// and an authenticated API client. Immutable after registry construction.
type BotAccount struct {
	Instance string
	Username string
	Rules    []Rule
	Client   ModClient
}

// Instance is one configured remote service deployment. Immutable after
// registry construction.
type Instance struct {
	Domain        string
	WebhookSecret []byte
	Bots          []*BotAccount
}

// ReportCategory is the Mastodon report category.
type ReportCategory string

const (
	CategoryViolation = ReportCategory("violation")
	CategorySpam      = ReportCategory("spam")
	CategoryOther     = ReportCategory("other")
)

// ReportInput is the content of one report to be filed.
type ReportInput struct {
	// StatusIDs attach the offending posts, when the event is a post.
	StatusIDs []string
	Comment   string
	Category  ReportCategory
	RuleIDs   []string
	Forward   bool
}

// ErrAlreadyApplied is returned by a ModClient when a restrict action is
// already in effect for the target account. The orchestrator records it as a
// success-no-op.
var ErrAlreadyApplied = errors.New("moderation action already in effect")

// ModClient is the remote moderation API surface the orchestrator drives.
// Implementations own retry/backoff policy; calls must honor ctx deadlines.
type ModClient interface {
	// CreateReport files a report against the target and returns its remote
	// identifier.
	CreateReport(ctx context.Context, target event.AccountRef, in *ReportInput) (string, error)
	// PerformAccountAction applies a restrict action. citesReport, if
	// non-empty, links the action to a previously filed report.
	PerformAccountAction(ctx context.Context, target event.AccountRef, kind RestrictKind, citesReport string) error
	// ResolveReport marks a report closed.
	ResolveReport(ctx context.Context, reportID string) error
}
