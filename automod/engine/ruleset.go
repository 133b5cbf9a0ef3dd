package engine

import (
	"github.com/fedimod/plume/automod/pattern"
)

// EvaluateRules runs a bot account's rules against one event and returns the
// triggered rules in configured order. Evaluation is read-only and
// deterministic: no I/O, no clock, no randomness. Order is significant; it
// determines report text and the order actions are attempted.
func EvaluateRules(bot *BotAccount, in *pattern.Input) []*Rule {
	var triggered []*Rule
	for i := range bot.Rules {
		rule := &bot.Rules[i]
		if ruleMatches(rule, in) {
			triggered = append(triggered, rule)
		}
	}
	return triggered
}

// a rule matches if any of its patterns match (logical OR); a rule with zero
// patterns never matches
func ruleMatches(rule *Rule, in *pattern.Input) bool {
	for _, m := range rule.Patterns {
		if m.Match(in) {
			return true
		}
	}
	return false
}
