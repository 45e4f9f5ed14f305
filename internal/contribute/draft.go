// Package contribute prepares new vulnerability documents for submission
// through the external issue tracker. Nothing is written to the content
// store; maintainers commit accepted drafts themselves.
package contribute

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/parser"
)

// DefaultDirectory is the store directory drafts are proposed for.
const DefaultDirectory = "bugs"

// Draft is a proposed vulnerability record.
type Draft struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Level        models.Level `json:"level"`
	Category     string       `json:"category"`
	Tags         []string     `json:"tags,omitempty"`
	DiscoveredAt string       `json:"discoveredAt"`
}

// Validate checks required fields, the level enum and the date layout.
func (d Draft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.Level, validation.Required, validation.By(func(v any) error {
			if l, _ := v.(models.Level); !l.Valid() {
				return errors.New("must be one of I, II, III, IV, V")
			}
			return nil
		})),
		validation.Field(&d.Category, validation.Required),
		validation.Field(&d.DiscoveredAt, validation.Required, validation.Date(parser.DateLayout)),
	)
}

// Normalize trims every field, drops blank and repeated tags and fills an
// empty discovery date with today's date.
func (d Draft) Normalize(now time.Time) Draft {
	d.ID = strings.TrimSpace(d.ID)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	d.Level = models.Level(strings.TrimSpace(string(d.Level)))
	d.DiscoveredAt = strings.TrimSpace(d.DiscoveredAt)
	if d.DiscoveredAt == "" {
		d.DiscoveredAt = now.Format(parser.DateLayout)
	}
	var tags []string
	seen := make(map[string]bool, len(d.Tags))
	for _, t := range d.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	d.Tags = tags
	return d
}

// Metadata returns the header a new record starts with: always unresolved.
func (d Draft) Metadata() models.Metadata {
	return models.Metadata{
		ID:           d.ID,
		Title:        d.Title,
		Status:       models.StatusUnresolved,
		Level:        d.Level,
		DiscoveredAt: d.DiscoveredAt,
		Category:     d.Category,
		Description:  d.Description,
		Tags:         d.Tags,
	}
}

// Markdown renders d as a complete document: header plus a body skeleton
// for the author to fill in.
func Markdown(d Draft) (string, error) {
	data, err := parser.Serialize(d.Metadata(), body(d))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func body(d Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	b.WriteString("## 漏洞描述\n\n")
	if d.Description != "" {
		b.WriteString(d.Description + "\n\n")
	}
	b.WriteString("## 影响范围\n\n请描述此漏洞的影响范围...\n\n")
	b.WriteString("## 复现步骤\n\n1. 步骤一\n2. 步骤二\n3. 步骤三\n\n")
	b.WriteString("## 修复建议\n\n请提供修复建议...\n\n")
	b.WriteString("## 参考链接\n\n- [相关链接1](https://example.com)\n- [相关链接2](https://example.com)\n")
	return b.String()
}

// Filename derives the document name for id: lower-cased, with every rune
// outside [a-z0-9] replaced by '-'.
func Filename(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String() + ".md"
}

// Target is the issue tracker drafts are submitted to.
type Target struct {
	// Repository is the tracker's repository URL, e.g.
	// https://github.com/owner/repo.
	Repository string
	// Directory is where the record should be stored once accepted.
	Directory string
}

// Submission is a prepared draft.
type Submission struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Markdown   string `json:"markdown"`
	IssueTitle string `json:"issueTitle"`
	IssueURL   string `json:"issueUrl,omitempty"`
}

// Prepare normalizes and validates d and builds its submission. IssueURL is
// empty when no repository is configured.
func Prepare(d Draft, target Target, now time.Time) (*Submission, error) {
	d = d.Normalize(now)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	md, err := Markdown(d)
	if err != nil {
		return nil, err
	}
	dir := target.Directory
	if dir == "" {
		dir = DefaultDirectory
	}
	sub := &Submission{
		Filename:   Filename(d.ID),
		Markdown:   md,
		IssueTitle: "新漏洞提交: " + d.Title,
	}
	sub.Path = path.Join(dir, sub.Filename)
	if target.Repository != "" {
		u, err := IssueURL(target.Repository, sub.IssueTitle, issueBody(d, sub))
		if err != nil {
			return nil, err
		}
		sub.IssueURL = u
	}
	return sub, nil
}

func issueBody(d Draft, sub *Submission) string {
	var b strings.Builder
	b.WriteString("## 漏洞信息\n\n")
	fmt.Fprintf(&b, "**ID**: %s\n**等级**: %s\n**分类**: %s\n**标签**: %s\n\n", d.ID, d.Level, d.Category, strings.Join(d.Tags, ", "))
	fmt.Fprintf(&b, "## 建议的文件名\n`%s`\n\n", sub.Path)
	fmt.Fprintf(&b, "## Markdown内容\n```markdown\n%s\n```\n\n", sub.Markdown)
	fmt.Fprintf(&b, "请将此内容保存为 `%s` 文件。", sub.Path)
	return b.String()
}

// IssueURL returns the new-issue link for repo prefilled with title and body.
func IssueURL(repo, title, body string) (string, error) {
	u, err := url.Parse(strings.TrimRight(repo, "/"))
	if err != nil {
		return "", fmt.Errorf("contribute: repository url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("contribute: repository url %q is not absolute", repo)
	}
	u = u.JoinPath("issues", "new")
	u.RawQuery = url.Values{"title": {title}, "body": {body}}.Encode()
	return u.String(), nil
}
