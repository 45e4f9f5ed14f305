package contribute

import (
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/bugwall/internal/models"
	"github.com/starford/bugwall/internal/parser"
)

var now = time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

func sample() Draft {
	return Draft{
		ID:           "VUL-042",
		Title:        "路径穿越",
		Description:  "Download handler trusts the file parameter.",
		Level:        models.LevelIV,
		Category:     "Web",
		Tags:         []string{" lfi ", "path", "lfi", ""},
		DiscoveredAt: "2025-03-01",
	}
}

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"VUL-042":    "vul-042.md",
		"CVE 2024_1": "cve-2024-1.md",
		"漏洞-1":       "---1.md",
	}
	for in, want := range cases {
		if got := Filename(in); got != want {
			t.Errorf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMarkdown_RoundTrips(t *testing.T) {
	d := sample().Normalize(now)
	md, err := Markdown(d)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	doc, err := parser.Parse("vul-042", []byte(md))
	if err != nil {
		t.Fatalf("draft does not parse: %v\n%s", err, md)
	}
	if !reflect.DeepEqual(doc.Metadata, d.Metadata()) {
		t.Errorf("metadata = %+v, want %+v", doc.Metadata, d.Metadata())
	}
	if doc.Metadata.Status != models.StatusUnresolved {
		t.Errorf("status = %q", doc.Metadata.Status)
	}
	if !strings.HasPrefix(doc.RawBody, "# 路径穿越") {
		t.Errorf("body = %q", doc.RawBody)
	}
}

func TestNormalize(t *testing.T) {
	d := Draft{ID: " X-1 ", Tags: []string{"a", " a", "b"}}.Normalize(now)
	if d.ID != "X-1" || d.DiscoveredAt != "2025-03-09" {
		t.Errorf("got %+v", d)
	}
	if !reflect.DeepEqual(d.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %v", d.Tags)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Draft){
		"missing id":    func(d *Draft) { d.ID = "" },
		"missing title": func(d *Draft) { d.Title = "" },
		"bad level":     func(d *Draft) { d.Level = "VII" },
		"no category":   func(d *Draft) { d.Category = "" },
		"bad date":      func(d *Draft) { d.DiscoveredAt = "03/01/2025" },
	}
	if err := sample().Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := sample()
			mutate(&d)
			if err := d.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	sub, err := Prepare(sample(), Target{Repository: "https://github.com/acme/bugwall/"}, now)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if sub.Filename != "vul-042.md" || sub.Path != "bugs/vul-042.md" {
		t.Errorf("filename=%q path=%q", sub.Filename, sub.Path)
	}
	u, err := url.Parse(sub.IssueURL)
	if err != nil {
		t.Fatalf("issue url: %v", err)
	}
	if u.Host != "github.com" || u.Path != "/acme/bugwall/issues/new" {
		t.Errorf("issue url = %s", sub.IssueURL)
	}
	q := u.Query()
	if q.Get("title") != "新漏洞提交: 路径穿越" {
		t.Errorf("title = %q", q.Get("title"))
	}
	body := q.Get("body")
	if !strings.Contains(body, "`bugs/vul-042.md`") || !strings.Contains(body, sub.Markdown) {
		t.Errorf("body missing filename or markdown:\n%s", body)
	}
}

func TestPrepare_NoRepository(t *testing.T) {
	sub, err := Prepare(sample(), Target{Directory: "records"}, now)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if sub.IssueURL != "" || sub.Path != "records/vul-042.md" {
		t.Errorf("got %+v", sub)
	}
}

func TestIssueURL_RejectsRelative(t *testing.T) {
	if _, err := IssueURL("acme/bugwall", "t", "b"); err == nil {
		t.Error("relative repository accepted")
	}
}
