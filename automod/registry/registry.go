// Package registry turns loaded configuration into immutable engine.Instance
// snapshots and serves them to request handlers through an atomically swapped
// store. Readers always see one coherent snapshot; reload replaces it
// wholesale or not at all.
package registry

import (
	"errors"
	"fmt"

	"github.com/fedimod/plume/automod/config"
	"github.com/fedimod/plume/automod/engine"
	"github.com/fedimod/plume/automod/websub"
)

// Builder constructs snapshots. NewClient is called once per bot account with
// its credentials; it must return a ready-to-use moderation API client.
type Builder struct {
	NewClient func(domain, username, accessToken string) engine.ModClient
}

// Build compiles configuration into a snapshot. Any invalid rule fails the
// whole build; a running store keeps serving its previous snapshot.
func (b *Builder) Build(files []config.InstanceFiles) (*Snapshot, error) {
	snap := &Snapshot{byDomain: make(map[string]*engine.Instance, len(files))}
	for _, f := range files {
		inst := &engine.Instance{
			Domain:        f.Webhook.Domain,
			WebhookSecret: []byte(f.Webhook.Secret),
		}
		for _, bf := range f.Bots {
			rules, err := compileRules(bf.Config)
			if err != nil {
				return nil, err
			}
			bot := &engine.BotAccount{
				Instance: bf.Config.Domain,
				Username: bf.Config.Username,
				Rules:    rules,
			}
			if b.NewClient != nil {
				bot.Client = b.NewClient(bf.Credentials.Domain, bf.Credentials.Username, bf.Credentials.AccessToken)
			}
			inst.Bots = append(inst.Bots, bot)
		}
		if _, dup := snap.byDomain[inst.Domain]; dup {
			return nil, &config.ValidationError{Domain: inst.Domain,
				Err: errors.New("duplicate instance domain")}
		}
		snap.Instances = append(snap.Instances, inst)
		snap.byDomain[inst.Domain] = inst
	}
	return snap, nil
}

func compileRules(cfg config.BotConfig) ([]engine.Rule, error) {
	rules := make([]engine.Rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		fail := func(field string, err error) error {
			return &config.ValidationError{
				Domain:   cfg.Domain,
				Username: cfg.Username,
				Rule:     rc.Name,
				Field:    field,
				Err:      err,
			}
		}
		if rc.Name == "" {
			return nil, fail("name", errors.New("rule has no name"))
		}
		rule := engine.Rule{Name: rc.Name}

		if rc.Report != nil {
			rule.Report = &engine.ReportSpec{
				Forward: rc.Report.Forward,
				RuleIDs: rc.Report.RuleIDs,
				Spam:    rc.Report.Spam,
			}
		}
		if rc.Restrict != "" {
			kind, err := engine.ParseRestrictKind(rc.Restrict)
			if err != nil {
				return nil, fail("restrict", err)
			}
			rule.Restrict = kind
		}
		// a rule that can trigger but do nothing is a configuration mistake
		if rule.Report == nil && rule.Restrict == engine.RestrictNone {
			return nil, fail("", errors.New("rule has neither report nor restrict"))
		}

		for i, spec := range rc.Patterns {
			m, err := spec.Compile()
			if err != nil {
				return nil, fail(fmt.Sprintf("patterns[%d]", i), err)
			}
			rule.Patterns = append(rule.Patterns, m)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Snapshot is one immutable view of all configured instances.
type Snapshot struct {
	Instances []*engine.Instance

	byDomain map[string]*engine.Instance
}

// Resolve returns the instance for a domain, or nil.
func (s *Snapshot) Resolve(domain string) *engine.Instance {
	return s.byDomain[domain]
}

// ErrAmbiguousSignature means more than one configured secret verifies the
// same payload, so the sender cannot be identified.
var ErrAmbiguousSignature = errors.New("webhook signature matches multiple instances")

// Infer identifies the sending instance by probing every configured secret
// against the payload signature. Used when the sender does not name itself.
// Returns nil (without error) when no secret matches.
func (s *Snapshot) Infer(sig *websub.Signature, body []byte) (*engine.Instance, error) {
	var found *engine.Instance
	for _, inst := range s.Instances {
		if sig.Verify(inst.WebhookSecret, body) {
			if found != nil {
				return nil, ErrAmbiguousSignature
			}
			found = inst
		}
	}
	return found, nil
}
