// Package parser splits vulnerability documents into a validated YAML header
// and a Markdown body, and serializes headers back into documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/models"
)

const delim = "---"

// DateLayout is the canonical discoveredAt layout.
const DateLayout = "2006-01-02"

// Document is the parser output: a validated header plus the untouched body.
type Document struct {
	Slug     string
	Metadata models.Metadata
	RawBody  string
}

// Parse splits data into header and body, decodes the header and validates it.
// Any header problem is reported as apperr.ErrInvalidMetadata.
func Parse(slug string, data []byte) (*Document, error) {
	header, body, ok := splitFrontmatter(data)
	if !ok {
		return nil, fmt.Errorf("parser: %s: %w: missing frontmatter", slug, apperr.ErrInvalidMetadata)
	}
	md, err := decodeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", slug, err)
	}
	return &Document{Slug: slug, Metadata: *md, RawBody: body}, nil
}

// ParseHeader decodes and validates only the header of data. The body is
// never looked at, which keeps category scans cheap.
func ParseHeader(data []byte) (*models.Metadata, error) {
	header, _, ok := splitFrontmatter(data)
	if !ok {
		return nil, fmt.Errorf("parser: %w: missing frontmatter", apperr.ErrInvalidMetadata)
	}
	md, err := decodeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return md, nil
}

// Body returns data with any leading frontmatter block removed. Documents
// without frontmatter are returned whole.
func Body(data []byte) string {
	_, body, ok := splitFrontmatter(data)
	if !ok {
		return string(data)
	}
	return body
}

// Serialize writes meta as a frontmatter block followed by body.
func Serialize(meta models.Metadata, body string) ([]byte, error) {
	header, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal header: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(header)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// NormalizeDate accepts YYYY-MM-DD or an RFC 3339 date-time and returns the
// YYYY-MM-DD key together with the parsed time.
func NormalizeDate(raw string) (string, time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), t, true
		}
	}
	return "", time.Time{}, false
}

// splitFrontmatter separates the YAML block between leading --- delimiters
// from the Markdown body.
func splitFrontmatter(data []byte) ([]byte, string, bool) {
	trimmed := bytes.TrimLeft(data, "\ufeff\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}

	header := rest[:idx]
	after := rest[idx+1+len(delim):]
	// Drop the remainder of the closing delimiter line.
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 && len(bytes.TrimSpace(after[:nl])) == 0 {
		after = after[nl+1:]
	} else if len(bytes.TrimSpace(after)) == 0 {
		after = nil
	}
	body := strings.TrimLeft(string(after), "\n\r")
	return header, body, true
}

func decodeHeader(header []byte) (*models.Metadata, error) {
	var md models.Metadata
	if err := yaml.Unmarshal(header, &md); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidMetadata, err)
	}
	if err := Validate(&md); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidMetadata, err)
	}
	return &md, nil
}

// Validate checks the required fields and enums of md.
func Validate(md *models.Metadata) error {
	return validation.ValidateStruct(md,
		validation.Field(&md.ID, validation.Required, notBlank),
		validation.Field(&md.Title, validation.Required, notBlank),
		validation.Field(&md.Status, validation.Required, validation.In(statusValues()...)),
		validation.Field(&md.Level, validation.Required, validation.In(levelValues()...)),
		validation.Field(&md.Category, validation.Required, notBlank),
		validation.Field(&md.DiscoveredAt, validation.Required, notBlank),
	)
}

var notBlank = validation.By(func(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

func statusValues() []any {
	out := make([]any, len(models.Statuses))
	for i, s := range models.Statuses {
		out[i] = s
	}
	return out
}

func levelValues() []any {
	out := make([]any, len(models.Levels))
	for i, l := range models.Levels {
		out[i] = l
	}
	return out
}
