package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"nexus/extractor/internal/fetch"
)

const repoBodyLimit = 2 << 20

// manifestFiles are probed in order; the first one present is included in
// the content so downstream analysis sees the dependency surface.
var manifestFiles = []string{"package.json", "requirements.txt", "Cargo.toml", "go.mod", "pyproject.toml"}

var repoURLRE = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/?#]+)`)

// RepositoryExtractor pulls a repository's descriptive document (README),
// a shallow root listing, and headline stats through the GitHub REST API.
type RepositoryExtractor struct {
	client  *fetch.Client
	apiBase string
	token   string
}

func NewRepositoryExtractor(client *fetch.Client, token string) *RepositoryExtractor {
	return &RepositoryExtractor{client: client, apiBase: "https://api.github.com", token: token}
}

type repoInfo struct {
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Watchers    int      `json:"watchers_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	License     *struct {
		Name string `json:"name"`
	} `json:"license"`
}

type repoContent struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (e *RepositoryExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	m := repoURLRE.FindStringSubmatch(ref.URL)
	if m == nil {
		return nil, Failf(KindCorrupt, "not a repository URL: %s", ref.URL)
	}
	owner, repo := m[1], strings.TrimSuffix(m[2], ".git")

	var info repoInfo
	if err := e.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", e.apiBase, owner, repo), &info); err != nil {
		return nil, err
	}

	readme := e.fetchReadme(ctx, owner, repo)
	listing := e.fetchListing(ctx, owner, repo)

	// A missing README alone is not fatal; the directory listing still tells
	// downstream consumers what the repository contains.
	if readme == "" && len(listing) == 0 {
		return nil, Failf(KindEmptyContent, "repository %s/%s has no readme and no visible files", owner, repo)
	}

	manifestName, manifest := e.fetchManifest(ctx, owner, repo)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", info.FullName)
	if info.Description != "" {
		fmt.Fprintf(&sb, "**Description:** %s\n\n", info.Description)
	}

	sb.WriteString("## Repository Stats\n")
	fmt.Fprintf(&sb, "- Stars: %d\n", info.Stars)
	fmt.Fprintf(&sb, "- Forks: %d\n", info.Forks)
	fmt.Fprintf(&sb, "- Watchers: %d\n", info.Watchers)
	fmt.Fprintf(&sb, "- Language: %s\n", orUnknown(info.Language))
	license := "Not specified"
	if info.License != nil {
		license = info.License.Name
	}
	fmt.Fprintf(&sb, "- License: %s\n\n", license)

	if len(info.Topics) > 0 {
		fmt.Fprintf(&sb, "**Topics:** %s\n\n", strings.Join(info.Topics, ", "))
	}

	if len(listing) > 0 {
		sb.WriteString("## File Structure (Root)\n")
		for _, line := range listing {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	if manifest != "" {
		sb.WriteString("## Dependencies\n")
		fmt.Fprintf(&sb, "### %s\n```\n%s\n```\n\n", manifestName, truncate(manifest, 2000))
	}

	if readme != "" {
		sb.WriteString("## README\n")
		sb.WriteString(readme)
	}

	return &Result{
		Title:   fmt.Sprintf("GitHub: %s/%s", owner, repo),
		Content: sb.String(),
		Metadata: map[string]any{
			"owner":      owner,
			"repo":       repo,
			"stars":      info.Stars,
			"forks":      info.Forks,
			"language":   info.Language,
			"topics":     info.Topics,
			"created_at": info.CreatedAt,
			"updated_at": info.UpdatedAt,
			"source_url": ref.URL,
		},
	}, nil
}

func (e *RepositoryExtractor) getJSON(ctx context.Context, url string, v any) error {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "nexus-extractor/1.0",
	}
	if e.token != "" {
		headers["Authorization"] = "token " + e.token
	}

	resp, err := e.client.Get(ctx, url, headers)
	if err != nil {
		return Wrap(KindUnreachable, "fetch repository API", err)
	}

	// GitHub signals rate limiting with 403 as well as 429.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return Failf(KindRateLimited, "repository API returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return Failf(KindUnreachable, "repository API returned %d", resp.StatusCode)
	}

	body, err := fetch.ReadBody(resp, repoBodyLimit)
	if err != nil {
		return Wrap(KindUnreachable, "read repository API", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Wrap(KindCorrupt, "decode repository API", err)
	}
	return nil
}

func (e *RepositoryExtractor) fetchReadme(ctx context.Context, owner, repo string) string {
	var c repoContent
	if err := e.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/readme", e.apiBase, owner, repo), &c); err != nil {
		return ""
	}
	return decodeBase64Content(c.Content)
}

func (e *RepositoryExtractor) fetchListing(ctx context.Context, owner, repo string) []string {
	var contents []repoContent
	if err := e.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/contents", e.apiBase, owner, repo), &contents); err != nil {
		return nil
	}
	listing := make([]string, 0, len(contents))
	for _, item := range contents {
		marker := "[file]"
		if item.Type == "dir" {
			marker = "[dir] "
		}
		listing = append(listing, marker+" "+item.Name)
	}
	return listing
}

func (e *RepositoryExtractor) fetchManifest(ctx context.Context, owner, repo string) (string, string) {
	for _, name := range manifestFiles {
		var c repoContent
		if err := e.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/contents/%s", e.apiBase, owner, repo, name), &c); err != nil {
			continue
		}
		if decoded := decodeBase64Content(c.Content); decoded != "" {
			return name, decoded
		}
	}
	return "", ""
}

// decodeBase64Content decodes GitHub's newline-wrapped base64 payloads.
func decodeBase64Content(content string) string {
	cleaned := strings.ReplaceAll(content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
