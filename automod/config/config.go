// Package config loads the on-disk YAML configuration surface: global
// settings, per-instance webhook secrets, and per-bot credentials and rules.
//
// Layout under the config dir:
//
//	global.yaml
//	<domain>/webhook.yaml
//	<domain>/<username>/credentials.yaml
//	<domain>/<username>/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fedimod/plume/automod/pattern"
)

// Settings are the global (non-tenant) service settings.
type Settings struct {
	// Listen addresses for the webhook server. At least one required.
	Listen []string `yaml:"listen"`
	// MetricsListen is the prometheus endpoint address. Empty disables it.
	MetricsListen string `yaml:"metrics_listen,omitempty"`
	// ActionTimeout bounds each moderation API call, eg "30s".
	ActionTimeout string `yaml:"action_timeout,omitempty"`
	// Classifier enables the optional external content classifier.
	Classifier *ClassifierSettings `yaml:"classifier,omitempty"`
}

type ClassifierSettings struct {
	// URL of the rspamd-compatible check endpoint.
	URL      string `yaml:"url"`
	Password string `yaml:"password,omitempty"`
}

// ActionTimeoutDuration parses ActionTimeout; zero when unset.
func (s *Settings) ActionTimeoutDuration() (time.Duration, error) {
	if s.ActionTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.ActionTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid action_timeout: %w", err)
	}
	return d, nil
}

// Webhook is the per-instance webhook shared secret.
type Webhook struct {
	Domain string `yaml:"domain"`
	Secret string `yaml:"secret"`
}

// Credentials is the per-bot API token.
type Credentials struct {
	Domain      string `yaml:"domain"`
	Username    string `yaml:"username"`
	AccessToken string `yaml:"access_token"`
}

// BotConfig is the per-bot ordered rule list.
type BotConfig struct {
	Domain   string `yaml:"domain"`
	Username string `yaml:"username"`
	Rules    []Rule `yaml:"rules"`
}

// ReportSpec mirrors engine.ReportSpec in YAML form.
type ReportSpec struct {
	RuleIDs []string `yaml:"rule_ids,omitempty"`
	Spam    bool     `yaml:"spam,omitempty"`
	Forward bool     `yaml:"forward,omitempty"`
}

// Rule is the YAML form of one moderation rule.
type Rule struct {
	Name     string         `yaml:"name"`
	Report   *ReportSpec    `yaml:"report,omitempty"`
	Restrict string         `yaml:"restrict,omitempty"`
	Patterns []pattern.Spec `yaml:"patterns,omitempty"`
}

// ValidationError is a configuration error with enough detail to locate the
// offending entry. Fatal at load or reload time; never swallowed.
type ValidationError struct {
	Domain   string
	Username string
	Rule     string
	Field    string
	Err      error
}

func (e *ValidationError) Error() string {
	loc := e.Domain
	if e.Username != "" {
		loc = e.Username + "@" + e.Domain
	}
	if e.Rule != "" {
		loc += " rule " + fmt.Sprintf("%q", e.Rule)
	}
	if e.Field != "" {
		loc += " field " + e.Field
	}
	return fmt.Sprintf("config %s: %v", loc, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BotFiles bundles one bot's credentials and rule config.
type BotFiles struct {
	Credentials Credentials
	Config      BotConfig
}

// InstanceFiles bundles one instance's webhook secret and its bots.
type InstanceFiles struct {
	Webhook Webhook
	Bots    []BotFiles
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadSettings reads global.yaml from the config dir.
func LoadSettings(dir string) (*Settings, error) {
	var settings Settings
	if err := loadYAML(filepath.Join(dir, "global.yaml"), &settings); err != nil {
		return nil, err
	}
	if len(settings.Listen) == 0 {
		return nil, fmt.Errorf("global settings: no listen addresses configured")
	}
	if _, err := settings.ActionTimeoutDuration(); err != nil {
		return nil, fmt.Errorf("global settings: %w", err)
	}
	return &settings, nil
}

// LoadDir reads every configured instance and bot under the config dir, in
// deterministic (sorted) order. A directory is an instance iff it contains
// webhook.yaml; a subdirectory is a bot iff it contains config.yaml. The
// domain and username recorded inside each file must match its location.
func LoadDir(dir string) ([]InstanceFiles, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var instances []InstanceFiles
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		domain := entry.Name()
		webhookPath := filepath.Join(dir, domain, "webhook.yaml")
		if _, err := os.Stat(webhookPath); err != nil {
			continue
		}

		var webhook Webhook
		if err := loadYAML(webhookPath, &webhook); err != nil {
			return nil, err
		}
		if webhook.Domain != domain {
			return nil, &ValidationError{Domain: domain, Field: "domain",
				Err: fmt.Errorf("webhook.yaml domain is %q", webhook.Domain)}
		}
		if webhook.Secret == "" {
			return nil, &ValidationError{Domain: domain, Field: "secret",
				Err: fmt.Errorf("webhook secret is empty")}
		}

		inst := InstanceFiles{Webhook: webhook}
		bots, err := loadBots(dir, domain)
		if err != nil {
			return nil, err
		}
		inst.Bots = bots
		instances = append(instances, inst)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Webhook.Domain < instances[j].Webhook.Domain
	})
	return instances, nil
}

func loadBots(dir, domain string) ([]BotFiles, error) {
	entries, err := os.ReadDir(filepath.Join(dir, domain))
	if err != nil {
		return nil, err
	}

	var bots []BotFiles
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		username := entry.Name()
		configPath := filepath.Join(dir, domain, username, "config.yaml")
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		var bot BotFiles
		if err := loadYAML(configPath, &bot.Config); err != nil {
			return nil, err
		}
		if bot.Config.Domain != domain || bot.Config.Username != username {
			return nil, &ValidationError{Domain: domain, Username: username, Field: "domain/username",
				Err: fmt.Errorf("config.yaml names %s@%s", bot.Config.Username, bot.Config.Domain)}
		}

		credsPath := filepath.Join(dir, domain, username, "credentials.yaml")
		if err := loadYAML(credsPath, &bot.Credentials); err != nil {
			return nil, err
		}
		if bot.Credentials.Domain != domain || bot.Credentials.Username != username {
			return nil, &ValidationError{Domain: domain, Username: username, Field: "credentials",
				Err: fmt.Errorf("credentials.yaml names %s@%s", bot.Credentials.Username, bot.Credentials.Domain)}
		}
		if bot.Credentials.AccessToken == "" {
			return nil, &ValidationError{Domain: domain, Username: username, Field: "access_token",
				Err: fmt.Errorf("access token is empty")}
		}

		bots = append(bots, bot)
	}

	sort.Slice(bots, func(i, j int) bool {
		return bots[i].Config.Username < bots[j].Config.Username
	})
	return bots, nil
}
