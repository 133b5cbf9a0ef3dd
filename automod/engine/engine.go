package engine

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/fedimod/plume/automod/event"
	"github.com/fedimod/plume/automod/pattern"
)

// ErrProcessingPanic means rule execution panicked; the event was dropped
// after the panic was recovered and logged.
var ErrProcessingPanic = errors.New("event processing panic")

// Classifier is the optional external content-classification collaborator.
// The engine functions correctly with it entirely absent.
type Classifier interface {
	// Classify returns a verdict string (eg rspamd action) for the text.
	Classify(ctx context.Context, text string) (string, error)
}

// Engine evaluates normalized events against each bot account's rules and
// orchestrates the resulting moderation actions.
type Engine struct {
	Logger *slog.Logger
	// Classifier may be nil; classifier patterns then never match.
	Classifier Classifier
	// ActionTimeout bounds each external API call. Zero means
	// DefaultActionTimeout.
	ActionTimeout time.Duration
}

func (eng *Engine) logger() *slog.Logger {
	if eng.Logger == nil {
		return slog.Default()
	}
	return eng.Logger
}

// ProcessPayload decodes one verified webhook body and runs every bot account
// configured for the instance against it. Signature verification must already
// have happened; the raw body is still treated as untrusted input.
//
// Returns event.ErrIgnored for recognized-but-irrelevant event kinds, a decode
// error for malformed payloads, and otherwise one TriggerResult per bot whose
// rules triggered.
func (eng *Engine) ProcessPayload(ctx context.Context, inst *Instance, body []byte) (results []*TriggerResult, err error) {
	// recover panics from rule execution, like an HTTP server would
	defer func() {
		if r := recover(); r != nil {
			eng.logger().Error("event processing panic", "instance", inst.Domain, "panic", r)
			err = ErrProcessingPanic
		}
	}()

	start := time.Now()
	norm, err := event.Normalize(body)
	if err != nil {
		if errors.Is(err, event.ErrIgnored) {
			eventProcessCount.WithLabelValues("ignored").Inc()
			return nil, err
		}
		eventErrorCount.WithLabelValues("decode").Inc()
		return nil, err
	}

	in := &pattern.Input{Event: norm}
	if eng.Classifier != nil {
		if post, ok := norm.(*event.Post); ok {
			in.ClassifierVerdict = eng.classify(ctx, inst, post)
		}
	}

	for _, bot := range inst.Bots {
		triggered := EvaluateRules(bot, in)
		if len(triggered) == 0 {
			continue
		}
		for _, rule := range triggered {
			ruleTriggerCount.WithLabelValues(bot.Instance, rule.Name).Inc()
		}
		res := eng.Apply(ctx, bot, norm, triggered)
		eng.logTriggerResult(res)
		results = append(results, res)
	}

	eventProcessCount.WithLabelValues(string(norm.EventKind())).Inc()
	eventProcessDuration.WithLabelValues(string(norm.EventKind())).Observe(time.Since(start).Seconds())
	return results, nil
}

// classifier failures degrade to "no verdict"; they never block rule
// evaluation
func (eng *Engine) classify(ctx context.Context, inst *Instance, post *event.Post) string {
	callCtx, cancel := eng.actionContext(ctx)
	defer cancel()
	text := post.Text
	if post.Warning != "" {
		text = post.Warning + "\n" + text
	}
	verdict, err := eng.Classifier.Classify(callCtx, text)
	if err != nil {
		eng.logger().Warn("content classification failed", "instance", inst.Domain, "post", post.ID, "err", err)
		return ""
	}
	return verdict
}

// one canonical line per bot per event, summarizing the audit record
func (eng *Engine) logTriggerResult(res *TriggerResult) {
	var ruleNames []string
	var reports, restricts, failures int
	for _, r := range res.Rules {
		ruleNames = append(ruleNames, r.Name)
		if r.Report != nil {
			if r.Report.Err != nil {
				failures++
			} else {
				reports++
			}
		}
		if r.Restrict != nil {
			if r.Restrict.Err != nil {
				failures++
			} else {
				restricts++
			}
		}
	}
	eng.logger().Info("event triggered rules",
		"instance", res.Instance,
		"bot", res.Bot,
		"kind", res.Kind,
		"target", res.Target.ID,
		"acct", res.Target.Acct,
		"rules", ruleNames,
		"reports", reports,
		"restricts", restricts,
		"failures", failures,
	)
}
