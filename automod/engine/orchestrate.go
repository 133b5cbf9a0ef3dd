package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fedimod/plume/automod/event"
)

// DefaultActionTimeout bounds each external API call when the engine has no
// explicit timeout configured.
const DefaultActionTimeout = 30 * time.Second

// the single aggregated report for one target within one event pass
type reportAggregate struct {
	input *ReportInput
}

// at most one report is filed per target per event; all reporting rules share
// its outcome
type filedReport struct {
	id  string
	err error
}

// aggregateReport merges the report content of every triggered reporting rule
// into one report, so one event yields at most one report per target rather
// than one per rule. Rule names are listed sorted; rule IDs are deduplicated;
// forward and spam are OR-combined. Category precedence: cited rule IDs make
// it a violation, else spam if any rule says spam, else other.
func aggregateReport(evt event.Normalized, triggered []*Rule) *reportAggregate {
	var names []string
	var ruleIDs []string
	seenName := make(map[string]bool)
	seenID := make(map[string]bool)
	var spam, forward bool
	for _, rule := range triggered {
		if rule.Report == nil {
			continue
		}
		if !seenName[rule.Name] {
			seenName[rule.Name] = true
			names = append(names, rule.Name)
		}
		for _, id := range rule.Report.RuleIDs {
			if !seenID[id] {
				seenID[id] = true
				ruleIDs = append(ruleIDs, id)
			}
		}
		spam = spam || rule.Report.Spam
		forward = forward || rule.Report.Forward
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	sort.Strings(ruleIDs)

	var sb strings.Builder
	sb.WriteString("Automod rules broken:")
	for _, name := range names {
		sb.WriteString("\n- ")
		sb.WriteString(name)
	}

	category := CategoryOther
	if len(ruleIDs) > 0 {
		category = CategoryViolation
	} else if spam {
		category = CategorySpam
	}

	in := &ReportInput{
		Comment:  sb.String(),
		Category: category,
		RuleIDs:  ruleIDs,
		Forward:  forward,
	}
	if post, ok := evt.(*event.Post); ok {
		in.StatusIDs = []string{post.ID}
	}
	return &reportAggregate{input: in}
}

// Apply drives report filing and account restriction for the triggered rules
// of one event, in evaluation order, and returns the audit record. Hard
// failures are recorded per rule and never abort sibling rules. Redundant
// restrict actions (same kind already applied this pass, or already in effect
// remotely) are recorded as success-no-ops.
func (eng *Engine) Apply(ctx context.Context, bot *BotAccount, evt event.Normalized, triggered []*Rule) *TriggerResult {
	target := evt.Target()
	logger := eng.logger().With("instance", bot.Instance, "bot", bot.Username, "target", target.ID)

	res := &TriggerResult{
		Instance: bot.Instance,
		Bot:      bot.Username,
		Kind:     evt.EventKind(),
		Target:   target,
	}

	agg := aggregateReport(evt, triggered)
	var filed *filedReport
	applied := make(map[RestrictKind]bool)
	resolvedReport := false

	for _, rule := range triggered {
		out := TriggeredRule{Name: rule.Name}
		var citeID string

		if rule.Report != nil {
			if filed == nil {
				filed = eng.fileReport(ctx, logger, bot, target, agg)
			}
			out.Report = &ReportOutcome{ID: filed.id, Err: filed.err}
			if filed.err == nil {
				citeID = filed.id
			}
		}

		if rule.Restrict != RestrictNone {
			restrict := &RestrictOutcome{Kind: rule.Restrict, CitedReport: citeID}
			if applied[rule.Restrict] {
				restrict.NoOp = true
			} else {
				err := eng.performAction(ctx, bot, target, rule.Restrict, citeID)
				switch {
				case errors.Is(err, ErrAlreadyApplied):
					logger.Info("restrict already in effect", "rule", rule.Name, "kind", rule.Restrict)
					restrict.NoOp = true
					applied[rule.Restrict] = true
				case err != nil:
					logger.Error("restrict action failed", "rule", rule.Name, "kind", rule.Restrict, "err", err)
					actionFailureCount.WithLabelValues("restrict").Inc()
					restrict.Err = err
				default:
					logger.Info("restricted account", "rule", rule.Name, "kind", rule.Restrict, "cites", citeID)
					actionRestrictCount.WithLabelValues(string(rule.Restrict)).Inc()
					applied[rule.Restrict] = true
				}
			}

			// a restrict that cites a report closes it; the audit chain from
			// action back to report must survive
			if restrict.Err == nil && citeID != "" && !resolvedReport {
				if err := eng.resolveReport(ctx, bot, citeID); err != nil {
					logger.Error("resolving cited report failed", "report", citeID, "err", err)
					actionFailureCount.WithLabelValues("resolve").Inc()
				} else {
					resolvedReport = true
				}
			}
			out.Restrict = restrict
		}

		res.Rules = append(res.Rules, out)
	}

	// the report is shared; every outcome carrying its ID must agree on its
	// resolution state
	if resolvedReport {
		for _, out := range res.Rules {
			if out.Report != nil && out.Report.Err == nil {
				out.Report.Resolved = true
			}
		}
	}
	return res
}

func (eng *Engine) fileReport(ctx context.Context, logger *slog.Logger, bot *BotAccount, target event.AccountRef, agg *reportAggregate) *filedReport {
	callCtx, cancel := eng.actionContext(ctx)
	defer cancel()
	id, err := bot.Client.CreateReport(callCtx, target, agg.input)
	if err != nil {
		logger.Error("filing report failed", "category", agg.input.Category, "err", err)
		actionFailureCount.WithLabelValues("report").Inc()
		return &filedReport{err: err}
	}
	logger.Info("filed report", "report", id, "category", agg.input.Category, "forward", agg.input.Forward)
	actionReportCount.WithLabelValues(string(agg.input.Category)).Inc()
	return &filedReport{id: id}
}

func (eng *Engine) performAction(ctx context.Context, bot *BotAccount, target event.AccountRef, kind RestrictKind, citeID string) error {
	callCtx, cancel := eng.actionContext(ctx)
	defer cancel()
	return bot.Client.PerformAccountAction(callCtx, target, kind, citeID)
}

func (eng *Engine) resolveReport(ctx context.Context, bot *BotAccount, reportID string) error {
	callCtx, cancel := eng.actionContext(ctx)
	defer cancel()
	return bot.Client.ResolveReport(callCtx, reportID)
}

func (eng *Engine) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := eng.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
