package engine

import (
	"github.com/fedimod/plume/automod/event"
)

// ReportOutcome records the result of a rule's report effect. ID is the
// remote report identifier once filed; multiple rules in one pass may share
// one aggregated report and therefore one ID.
type ReportOutcome struct {
	ID       string
	Resolved bool
	Err      error
}

// RestrictOutcome records the result of a rule's restrict effect. CitedReport
// is set when the action was linked to a report filed in the same pass. NoOp
// marks an action that was already in effect.
type RestrictOutcome struct {
	Kind        RestrictKind
	CitedReport string
	NoOp        bool
	Err         error
}

// TriggeredRule is the audit record for one triggered rule.
type TriggeredRule struct {
	Name     string
	Report   *ReportOutcome
	Restrict *RestrictOutcome
}

// TriggerResult is the audit record of one evaluation pass over one event for
// one bot account. It is owned by the caller for the lifetime of the event's
// processing and not retained afterward.
type TriggerResult struct {
	Instance string
	Bot      string
	Kind     event.Kind
	Target   event.AccountRef
	Rules    []TriggeredRule
}

// Failed reports whether any action in the pass hit a hard failure.
func (tr *TriggerResult) Failed() bool {
	for _, r := range tr.Rules {
		if r.Report != nil && r.Report.Err != nil {
			return true
		}
		if r.Restrict != nil && r.Restrict.Err != nil {
			return true
		}
	}
	return false
}
