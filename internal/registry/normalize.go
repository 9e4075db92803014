package registry

import (
	"regexp"
	"strings"
	"time"

	"mcpfinder-go/internal/categories"
)

// Stop words excluded from derived keywords. Includes MCP ecosystem
// boilerplate (mcp, server, tool, ...) that carries no signal.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "is": {}, "it": {}, "that": {},
	"this": {}, "as": {}, "are": {}, "was": {}, "be": {}, "has": {},
	"had": {}, "have": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "may": {},
	"might": {}, "shall": {}, "not": {}, "no": {},
	"mcp": {}, "server": {}, "tool": {}, "model": {}, "context": {}, "protocol": {},
}

var (
	nonAlphanumRun = regexp.MustCompile(`[^a-z0-9]+`)
	// Dots and slashes survive the strip so the token split can act on them
	nonWordChars = regexp.MustCompile(`[^\w\s./-]`)
	tokenSplit   = regexp.MustCompile(`[\s._/-]+`)
)

// Slugify derives the URL-safe slug from a server id: lowercase, runs
// of non-alphanumeric characters collapsed to "-", edges trimmed.
// Idempotent: Slugify(Slugify(id)) == Slugify(id).
func Slugify(id string) string {
	s := strings.ToLower(id)
	s = nonAlphanumRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ExtractKeywords tokenizes name+description into search keywords:
// lowercased, punctuation stripped, split on whitespace and ._/-,
// tokens of length <= 2 and stop words dropped, deduplicated in
// first-seen order.
func ExtractKeywords(name, description string) []string {
	text := strings.ToLower(name + " " + description)
	text = nonWordChars.ReplaceAllString(text, "")

	var keywords []string
	seen := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(text, -1) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}

// Finalize derives the computed fields of a record a source puller has
// partially filled: slug, keywords, categories, provenance, sync time.
// Pure except for the now timestamp supplied by the caller.
func Finalize(rec *ServerRecord, source string, now time.Time) {
	rec.Slug = Slugify(rec.ID)
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	rec.Keywords = ExtractKeywords(rec.Name, rec.Description)
	rec.Categories = categories.Categorize(rec.Name, rec.Description)
	rec.Sources = []string{source}
	rec.LastSyncedAt = now.UTC()
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	if rec.RemoteURL != "" {
		rec.HasRemote = true
	}
}
