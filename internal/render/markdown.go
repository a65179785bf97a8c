// Package render turns Markdown page bodies into HTML fragments.
//
// Fenced code blocks are highlighted with chroma using CSS classes, so pages
// stay small and a single stylesheet (see WriteStylesheet) styles every page.
package render

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

const (
	// NoHighlight disables syntax highlighting when used as the style name.
	NoHighlight = "none"
	// DefaultStyle is used when no style is configured.
	DefaultStyle = "github"
)

// Options configures a Markdown renderer.
type Options struct {
	HighlightStyle string // chroma style name, or NoHighlight
	Sanitize       bool
}

// Markdown renders Markdown to HTML. It holds no per-document state and can
// be reused across builds.
type Markdown struct {
	md        goldmark.Markdown
	style     *chroma.Style
	formatter *chromahtml.Formatter
	policy    *bluemonday.Policy
}

// NewMarkdown returns a renderer for opts. Unknown highlight styles are an error.
func NewMarkdown(opts Options) (*Markdown, error) {
	m := &Markdown{}

	name := opts.HighlightStyle
	if name == "" {
		name = DefaultStyle
	}

	rendererOpts := []renderer.Option{html.WithUnsafe()}
	if name != NoHighlight {
		style, ok := styles.Registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown highlight style %q", name)
		}
		m.style = style
		m.formatter = chromahtml.New(chromahtml.WithClasses(true))
		rendererOpts = append(rendererOpts, renderer.WithNodeRenderers(
			util.Prioritized(&codeBlockRenderer{style: m.style, formatter: m.formatter}, 200),
		))
	}

	m.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOpts...),
	)

	if opts.Sanitize {
		m.policy = sanitizePolicy()
	}
	return m, nil
}

// Highlighting reports whether fenced code blocks are highlighted.
func (m *Markdown) Highlighting() bool {
	return m.style != nil
}

// Render converts a Markdown body to an HTML fragment.
func (m *Markdown) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return nil, err
	}
	if m.policy != nil {
		return m.policy.SanitizeBytes(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// WriteStylesheet writes the CSS for the highlight style. It writes nothing
// when highlighting is disabled.
func (m *Markdown) WriteStylesheet(w io.Writer) error {
	if m.style == nil {
		return nil
	}
	return m.formatter.WriteCSS(w, m.style)
}

var classValue = regexp.MustCompile(`^[\w\s-]+$`)

// sanitizePolicy is the UGC policy plus the class attributes chroma emits.
func sanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(classValue).OnElements("pre", "code", "span")
	return p
}

type codeBlockRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	var lexer chroma.Lexer
	if lang := string(n.Language(source)); lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, fmt.Errorf("highlight code block: %w", err)
	}
	if err := r.formatter.Format(w, r.style, iterator); err != nil {
		return ast.WalkStop, fmt.Errorf("highlight code block: %w", err)
	}
	return ast.WalkSkipChildren, nil
}
