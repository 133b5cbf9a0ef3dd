package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadSettings(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	writeFile(t, dir, "global.yaml", `
listen:
  - ":8080"
  - "127.0.0.1:8081"
metrics_listen: ":9090"
action_timeout: 45s
classifier:
  url: http://localhost:11333/checkv2
  password: hunter2
`)
	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal([]string{":8080", "127.0.0.1:8081"}, settings.Listen)
	assert.Equal(":9090", settings.MetricsListen)
	d, err := settings.ActionTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(45*time.Second, d)
	require.NotNil(t, settings.Classifier)
	assert.Equal("http://localhost:11333/checkv2", settings.Classifier.URL)
}

func TestLoadSettingsErrors(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "global.yaml", "metrics_listen: ':9090'\n")
	_, err := LoadSettings(dir)
	assert.ErrorContains(t, err, "no listen addresses")

	writeFile(t, dir, "global.yaml", "listen: [':8080']\naction_timeout: soon\n")
	_, err = LoadSettings(dir)
	assert.ErrorContains(t, err, "action_timeout")
}

func writeInstance(t *testing.T, dir, domain string) {
	t.Helper()
	writeFile(t, dir, filepath.Join(domain, "webhook.yaml"),
		"domain: "+domain+"\nsecret: topsecret\n")
}

func writeBot(t *testing.T, dir, domain, username, rules string) {
	t.Helper()
	base := filepath.Join(domain, username)
	writeFile(t, dir, filepath.Join(base, "credentials.yaml"),
		"domain: "+domain+"\nusername: "+username+"\naccess_token: token-123\n")
	writeFile(t, dir, filepath.Join(base, "config.yaml"),
		"domain: "+domain+"\nusername: "+username+"\nrules:\n"+rules)
}

func TestLoadDir(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	writeInstance(t, dir, "mastodon.example")
	writeBot(t, dir, "mastodon.example", "modbot", `
  - name: no-hn-links
    report:
      forward: true
    patterns:
      - link_domain: news.ycombinator.com
  - name: spam-words
    report:
      spam: true
    restrict: silence
    patterns:
      - word: cheap pills
      - regex: '(?i)buy\s+now'
`)
	writeInstance(t, dir, "aaa.example")
	// a dir without webhook.yaml is not an instance
	writeFile(t, dir, filepath.Join("notes", "readme.txt"), "ignore me")

	instances, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	// sorted by domain
	assert.Equal("aaa.example", instances[0].Webhook.Domain)
	assert.Equal("mastodon.example", instances[1].Webhook.Domain)
	assert.Empty(instances[0].Bots)

	require.Len(t, instances[1].Bots, 1)
	bot := instances[1].Bots[0]
	assert.Equal("token-123", bot.Credentials.AccessToken)
	require.Len(t, bot.Config.Rules, 2)
	assert.Equal("no-hn-links", bot.Config.Rules[0].Name)
	assert.True(bot.Config.Rules[0].Report.Forward)
	assert.Equal("news.ycombinator.com", bot.Config.Rules[0].Patterns[0].LinkDomain)
	assert.Equal("silence", bot.Config.Rules[1].Restrict)
	assert.Len(bot.Config.Rules[1].Patterns, 2)
}

func TestLoadDirConsistencyChecks(t *testing.T) {
	t.Run("webhook domain mismatch", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, filepath.Join("mastodon.example", "webhook.yaml"),
			"domain: other.example\nsecret: s\n")
		_, err := LoadDir(dir)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "mastodon.example", verr.Domain)
	})

	t.Run("empty secret", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, filepath.Join("mastodon.example", "webhook.yaml"),
			"domain: mastodon.example\nsecret: ''\n")
		_, err := LoadDir(dir)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "secret", verr.Field)
	})

	t.Run("bot username mismatch", func(t *testing.T) {
		dir := t.TempDir()
		writeInstance(t, dir, "mastodon.example")
		base := filepath.Join("mastodon.example", "modbot")
		writeFile(t, dir, filepath.Join(base, "config.yaml"),
			"domain: mastodon.example\nusername: otherbot\nrules: []\n")
		_, err := LoadDir(dir)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "modbot", verr.Username)
	})

	t.Run("missing credentials", func(t *testing.T) {
		dir := t.TempDir()
		writeInstance(t, dir, "mastodon.example")
		base := filepath.Join("mastodon.example", "modbot")
		writeFile(t, dir, filepath.Join(base, "config.yaml"),
			"domain: mastodon.example\nusername: modbot\nrules: []\n")
		_, err := LoadDir(dir)
		assert.Error(t, err)
	})
}
