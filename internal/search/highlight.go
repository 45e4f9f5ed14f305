package search

import (
	"html"
	"regexp"
	"strings"
)

// Highlight HTML-escapes text and wraps every case-insensitive occurrence
// of term in <mark>. A blank term only escapes.
func Highlight(text, term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return html.EscapeString(text)
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(text[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}
