// Package categories derives a fixed taxonomy from server names and
// descriptions by substring keyword matching.
package categories

import "strings"

// Category pairs a tag with the keywords that select it
type Category struct {
	Name     string
	Keywords []string
}

// Other is the fallback tag for servers matching no category
const Other = "other"

// Taxonomy is the closed category set, in definition order
var Taxonomy = []Category{
	{"filesystem", []string{"file", "filesystem", "directory", "folder", "path", "disk", "storage", "fs"}},
	{"database", []string{"database", "sql", "sqlite", "postgres", "mysql", "mongo", "redis", "dynamodb", "supabase", "prisma", "db", "query"}},
	{"api", []string{"api", "rest", "graphql", "endpoint", "webhook", "http", "request"}},
	{"ai", []string{"ai", "llm", "embedding", "openai", "anthropic", "gemini", "machine-learning", "ml", "neural", "gpt", "claude"}},
	{"web", []string{"web", "browser", "scrape", "crawl", "html", "url", "fetch", "puppeteer", "playwright", "selenium"}},
	{"git", []string{"git", "github", "gitlab", "bitbucket", "repo", "commit", "branch", "version-control"}},
	{"cloud", []string{"cloud", "aws", "azure", "gcp", "docker", "kubernetes", "k8s", "terraform", "deploy", "serverless", "lambda"}},
	{"search", []string{"search", "brave", "bing", "elasticsearch", "algolia", "index"}},
	{"monitoring", []string{"monitor", "log", "metric", "alert", "observability", "trace", "datadog", "grafana", "prometheus", "sentry"}},
	{"security", []string{"security", "auth", "encrypt", "vault", "secret", "token", "oauth", "permission", "ssl", "tls"}},
	{"communication", []string{"email", "slack", "discord", "telegram", "notification", "message", "chat", "sms", "twilio"}},
	{"productivity", []string{"notion", "todoist", "calendar", "task", "project", "jira", "trello", "asana", "linear", "schedule"}},
	{"dev-tools", []string{"lint", "format", "test", "debug", "compile", "build", "ci", "npm", "package", "cli", "terminal"}},
	{"data", []string{"csv", "json", "xml", "yaml", "parse", "transform", "etl", "spreadsheet", "excel", "pandas"}},
	{"media", []string{"image", "video", "audio", "media", "photo", "pdf", "document", "convert", "ffmpeg"}},
}

// Names returns the taxonomy tag names in definition order
func Names() []string {
	names := make([]string, 0, len(Taxonomy))
	for _, c := range Taxonomy {
		names = append(names, c.Name)
	}
	return names
}

// IsKnown reports whether name is a taxonomy tag or the "other" fallback
func IsKnown(name string) bool {
	if name == Other {
		return true
	}
	for _, c := range Taxonomy {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Matches reports whether the category matches the given lowercased text.
// A category matches when any of its keywords is a substring of the text.
func (c *Category) Matches(text string) bool {
	for _, kw := range c.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Categorize returns every taxonomy tag matching name+description,
// or {"other"} when none match.
func Categorize(name, description string) []string {
	text := strings.ToLower(name + " " + description)

	var matched []string
	for i := range Taxonomy {
		if Taxonomy[i].Matches(text) {
			matched = append(matched, Taxonomy[i].Name)
		}
	}

	if len(matched) == 0 {
		return []string{Other}
	}
	return matched
}
