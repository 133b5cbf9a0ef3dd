package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimod/plume/automod/event"
	"github.com/fedimod/plume/automod/pattern"
)

func mustPattern(t *testing.T, spec pattern.Spec) pattern.Matcher {
	t.Helper()
	m, err := spec.Compile()
	require.NoError(t, err)
	return m
}

func testPost(text string, links ...event.Link) *event.Post {
	return &event.Post{
		ID:     "post-1",
		Author: event.AccountRef{ID: "acct-1", Acct: "poster@remote.example"},
		Text:   text,
		Links:  links,
	}
}

func TestEvaluateOrderAndDeterminism(t *testing.T) {
	assert := assert.New(t)

	bot := &BotAccount{
		Instance: "mastodon.example",
		Username: "mod",
		Rules: []Rule{
			{Name: "alpha", Patterns: []pattern.Matcher{mustPattern(t, pattern.Spec{Word: "alpha"})}, Restrict: RestrictSilence},
			{Name: "no-patterns", Restrict: RestrictSuspend},
			{Name: "beta", Patterns: []pattern.Matcher{mustPattern(t, pattern.Spec{Word: "beta"})}, Restrict: RestrictSilence},
			{Name: "alpha-again", Patterns: []pattern.Matcher{mustPattern(t, pattern.Spec{Word: "alpha"})}, Report: &ReportSpec{}},
			{Name: "miss", Patterns: []pattern.Matcher{mustPattern(t, pattern.Spec{Word: "gamma"})}, Report: &ReportSpec{}},
		},
	}

	in := &pattern.Input{Event: testPost("ALPHA then beta")}
	triggered := EvaluateRules(bot, in)
	require.Len(t, triggered, 3)
	assert.Equal("alpha", triggered[0].Name)
	assert.Equal("beta", triggered[1].Name)
	assert.Equal("alpha-again", triggered[2].Name)

	// identical input yields identical ordered output
	again := EvaluateRules(bot, in)
	require.Len(t, again, 3)
	for i := range triggered {
		assert.Same(triggered[i], again[i])
	}
}

func TestEvaluateZeroPatternsNeverTriggers(t *testing.T) {
	assert := assert.New(t)

	bot := &BotAccount{
		Rules: []Rule{{Name: "inert-patterns", Restrict: RestrictSuspend}},
	}
	assert.Empty(EvaluateRules(bot, &pattern.Input{Event: testPost("anything at all")}))
}

func TestEvaluateOrCombination(t *testing.T) {
	assert := assert.New(t)

	bot := &BotAccount{
		Rules: []Rule{{
			Name: "either",
			Patterns: []pattern.Matcher{
				mustPattern(t, pattern.Spec{Word: "nomatch"}),
				mustPattern(t, pattern.Spec{Word: "present"}),
			},
			Report: &ReportSpec{},
		}},
	}
	assert.Len(EvaluateRules(bot, &pattern.Input{Event: testPost("present here")}), 1)
	assert.Empty(EvaluateRules(bot, &pattern.Input{Event: testPost("absent")}))
}
