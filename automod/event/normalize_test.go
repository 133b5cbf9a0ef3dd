package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusContentHTML = `<p>Guidelines for Brutalist Web Design<br />L: <a href="https://brutalist-web.design/" target="_blank" rel="nofollow noopener noreferrer"><span class="invisible">https://</span><span class="">brutalist-web.design/</span><span class="invisible"></span></a><br />C: <a href="https://news.ycombinator.com/item?id=35783189" target="_blank" rel="nofollow noopener noreferrer"><span class="invisible">https://</span><span class="ellipsis">news.ycombinator.com/item?id=3</span><span class="invisible">5783189</span></a></p>`

func statusEventBody(t *testing.T, eventName, content, spoiler string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event":      eventName,
		"created_at": "2024-05-01T12:00:00.000Z",
		"object": map[string]any{
			"id":           "110000000000000001",
			"content":      content,
			"spoiler_text": spoiler,
			"account": map[string]any{
				"id":           "108000000000000001",
				"username":     "brutalist",
				"acct":         "brutalist@design.example",
				"display_name": "Brutalist Fan",
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestNormalizeStatus(t *testing.T) {
	assert := assert.New(t)

	norm, err := Normalize(statusEventBody(t, "status.created", statusContentHTML, "cw: links"))
	require.NoError(t, err)
	post, ok := norm.(*Post)
	require.True(t, ok)

	assert.Equal(KindPost, post.EventKind())
	assert.Equal("110000000000000001", post.ID)
	assert.Equal("brutalist@design.example", post.Author.Acct)
	assert.False(post.Author.Local)
	assert.Contains(post.Text, "Guidelines for Brutalist Web Design")
	assert.NotContains(post.Text, "<p>")
	assert.NotContains(post.Text, "invisible")
	assert.Equal("cw: links", post.Warning)

	hosts := make(map[string]Context)
	for _, link := range post.Links {
		hosts[link.Host] = link.Source
	}
	assert.Equal(Context("body"), hosts["news.ycombinator.com"])
	assert.Equal(Context("body"), hosts["brutalist-web.design"])
}

func TestNormalizeStatusRegistrableDomain(t *testing.T) {
	assert := assert.New(t)

	content := `<p>totally real: <a href="https://notnews.ycombinator.com.evil.test/">link</a></p>`
	norm, err := Normalize(statusEventBody(t, "status.updated", content, ""))
	require.NoError(t, err)
	post := norm.(*Post)

	require.Len(t, post.Links, 1)
	assert.Equal("notnews.ycombinator.com.evil.test", post.Links[0].Host)
	assert.Equal("evil.test", post.Links[0].RegistrableDomain)
}

func TestNormalizeStatusWarningLinks(t *testing.T) {
	assert := assert.New(t)

	norm, err := Normalize(statusEventBody(t, "status.created", "<p>hi</p>", "see https://spam.example/casino now"))
	require.NoError(t, err)
	post := norm.(*Post)

	require.Len(t, post.Links, 1)
	assert.Equal("spam.example", post.Links[0].Host)
	assert.Equal(ContextWarning, post.Links[0].Source)
}

func TestNormalizeAccount(t *testing.T) {
	assert := assert.New(t)

	body, err := json.Marshal(map[string]any{
		"event":      "account.created",
		"created_at": "2024-05-01T12:00:00.000Z",
		"object": map[string]any{
			"id":       "108000000000000002",
			"username": "freshspammer",
			"domain":   nil,
			"account": map[string]any{
				"id":           "108000000000000002",
				"username":     "freshspammer",
				"acct":         "freshspammer",
				"display_name": "Totally Legit",
				"note":         `<p>Deals at <a href="https://spam.example/deals">spam.example</a></p>`,
				"fields": []map[string]any{
					{"name": "shop", "value": `<a href="https://shop.spam.example/">here</a>`},
				},
			},
		},
	})
	require.NoError(t, err)

	norm, err := Normalize(body)
	require.NoError(t, err)
	acct, ok := norm.(*Account)
	require.True(t, ok)

	assert.Equal(KindAccount, acct.EventKind())
	assert.Equal("freshspammer", acct.Acct)
	assert.True(acct.Local)
	assert.Equal("Totally Legit", acct.DisplayName)
	assert.Contains(acct.Bio, "Deals at")
	assert.Contains(acct.Bio, "shop")

	hosts := make(map[string]string)
	for _, link := range acct.Links {
		hosts[link.Host] = link.RegistrableDomain
		assert.Equal(ContextBio, link.Source)
	}
	assert.Contains(hosts, "spam.example")
	assert.Contains(hosts, "shop.spam.example")

	ref := acct.Target()
	assert.Equal("108000000000000002", ref.ID)
	assert.True(ref.Local)
}

func TestNormalizeIgnoredKinds(t *testing.T) {
	assert := assert.New(t)

	for _, name := range []string{"report.created", "report.updated", "status.deleted", "something.else"} {
		body := []byte(`{"event":"` + name + `","created_at":"2024-05-01T12:00:00.000Z","object":{}}`)
		_, err := Normalize(body)
		assert.True(errors.Is(err, ErrIgnored), "event %s should be ignored", name)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	assert := assert.New(t)

	_, err := Normalize([]byte(`{not json`))
	assert.Error(err)
	assert.False(errors.Is(err, ErrIgnored))

	_, err = Normalize([]byte(`{"event":"status.created","object":[1,2]}`))
	assert.Error(err)
}

func TestNormalizeDeterministic(t *testing.T) {
	assert := assert.New(t)

	body := statusEventBody(t, "status.created", statusContentHTML, "cw")
	first, err := Normalize(body)
	require.NoError(t, err)
	second, err := Normalize(body)
	require.NoError(t, err)
	assert.Equal(first, second)
}
