// Package render converts Markdown bodies (GFM tables, strikethrough,
// autolinks, math and fenced code) into HTML.
//
// Input is trusted, author-controlled content: raw HTML passes through
// unchanged and no sanitization is attempted.
//
// Math is emitted as MathJax-delimited spans and is not typeset here. Pages
// showing rendered bodies must load MathJax to typeset them.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/parser"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "github"

// FallbackHTML is emitted in place of a body whose rendering failed.
const FallbackHTML = `<div class="render-error">This content could not be rendered.</div>`

// Options configures a Renderer.
type Options struct {
	HighlightStyle string
	Logger         *slog.Logger
}

// Renderer is the Markdown to HTML pipeline. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	style  string
	logger *slog.Logger
}

// New builds the pipeline: GFM extensions, math recognition, code
// highlighting with CSS classes, HTML serialization.
func New(opts Options) *Renderer {
	style := opts.HighlightStyle
	if style == "" {
		style = DefaultStyle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			mathjax.MathJax,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)
	return &Renderer{md: md, style: style, logger: logger}
}

// Render converts markup to HTML. It never fails: any error or panic inside
// the pipeline yields FallbackHTML and a logged diagnostic.
func (r *Renderer) Render(markup string) string {
	out, err := r.convert(markup)
	if err != nil {
		r.logger.Warn("render failed", slog.String("error", err.Error()))
		return FallbackHTML
	}
	return out
}

func (r *Renderer) convert(markup string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render: %w: panic: %v", apperr.ErrRenderFailure, p)
		}
	}()
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markup), &buf); err != nil {
		return "", fmt.Errorf("render: %w: %v", apperr.ErrRenderFailure, err)
	}
	return buf.String(), nil
}

// RenderFrom fetches markup through src and renders it. Store-backed and
// sandboxed rendering differ only in src, so identical markup always yields
// identical HTML. The returned error concerns fetching only.
func (r *Renderer) RenderFrom(ctx context.Context, src Source, ref string) (string, error) {
	markup, err := src.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.Render(markup), nil
}

// Stylesheet returns the CSS for the configured highlight style.
func (r *Renderer) Stylesheet() string {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(r.style)); err != nil {
		r.logger.Warn("stylesheet failed", slog.String("style", r.style), slog.String("error", err.Error()))
		return ""
	}
	return buf.String()
}

// HasStyle reports whether name is a registered highlight style.
func HasStyle(name string) bool {
	return slices.Contains(styles.Names(), name)
}

// Source supplies markup to the pipeline.
type Source interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// Document is the store-backed source: a document as read from the content
// store, header included. Fetch strips the header; ref names the document
// for diagnostics only.
type Document []byte

// Fetch returns the body of d.
func (d Document) Fetch(_ context.Context, _ string) (string, error) {
	return parser.Body(d), nil
}

// Text is a sandboxed source: it returns its own contents and never touches
// a store. The ref is ignored.
type Text string

// Fetch returns t.
func (t Text) Fetch(_ context.Context, _ string) (string, error) {
	return string(t), nil
}
