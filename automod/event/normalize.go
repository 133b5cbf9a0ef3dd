package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize decodes a verified webhook delivery body into a normalized event.
// Unsupported event kinds return ErrIgnored. The body must already have passed
// signature verification; nothing here is treated as trusted.
func Normalize(body []byte) (Normalized, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook envelope: %w", err)
	}

	switch env.Event {
	case "status.created", "status.updated":
		var status apiStatus
		if err := json.Unmarshal(env.Object, &status); err != nil {
			return nil, fmt.Errorf("decoding status payload: %w", err)
		}
		return normalizeStatus(&status), nil
	case "account.created", "account.approved", "account.updated":
		var acct apiAdminAccount
		if err := json.Unmarshal(env.Object, &acct); err != nil {
			return nil, fmt.Errorf("decoding account payload: %w", err)
		}
		return normalizeAccount(&acct), nil
	case "report.created", "report.updated":
		// report events are part of the webhook scope but have no rules
		return nil, ErrIgnored
	default:
		return nil, ErrIgnored
	}
}

func normalizeStatus(status *apiStatus) *Post {
	text, hrefs := flattenHTML(status.Content)

	// media alt text and poll options are rule-visible body text too
	parts := []string{text}
	for _, att := range status.MediaAttachments {
		if att.Description != "" {
			parts = append(parts, att.Description)
		}
	}
	if status.Poll != nil {
		for _, opt := range status.Poll.Options {
			parts = append(parts, opt.Title)
		}
	}
	body := strings.Join(parts, " ")

	links := resolveLinks(ContextBody, append(hrefs, extractTextURLs(body)...))
	links = append(links, resolveLinks(ContextWarning, extractTextURLs(status.SpoilerText))...)

	return &Post{
		ID:      status.ID,
		Author:  accountRef(&status.Account),
		Text:    body,
		Warning: status.SpoilerText,
		Links:   links,
	}
}

func normalizeAccount(acct *apiAdminAccount) *Account {
	bio, hrefs := flattenHTML(acct.Account.Note)
	parts := []string{bio}
	for _, field := range acct.Account.Fields {
		val, fieldHrefs := flattenHTML(field.Value)
		parts = append(parts, field.Name, val)
		hrefs = append(hrefs, fieldHrefs...)
	}
	bio = strings.TrimSpace(strings.Join(parts, " "))

	username := acct.Account.Acct
	if username == "" {
		username = acct.Username
		if acct.Domain != nil && *acct.Domain != "" {
			username = username + "@" + *acct.Domain
		}
	}

	return &Account{
		ID:          acct.ID,
		Acct:        username,
		DisplayName: acct.Account.DisplayName,
		Bio:         bio,
		Local:       !strings.Contains(username, "@"),
		Links:       resolveLinks(ContextBio, append(hrefs, extractTextURLs(bio)...)),
	}
}

func accountRef(acct *apiAccount) AccountRef {
	return AccountRef{
		ID:    acct.ID,
		Acct:  acct.Acct,
		Local: !strings.Contains(acct.Acct, "@"),
	}
}
