// Package builder renders the source tree into the output tree.
//
// A build is a pure function of the source tree: every output is derived
// from the files present when the build starts, and with cleaning enabled
// anything else under the output root is removed. All sources are read and
// rendered before the first write, so a malformed source leaves the output
// tree exactly as the last successful build left it.
package builder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/pbaity/folio/internal/ignore"
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/render"
	"github.com/pbaity/folio/pkg/models"
)

// StylesheetName is the highlight stylesheet written next to rendered pages.
const StylesheetName = "highlight.css"

// Result summarizes one completed build.
type Result struct {
	BuildID     string
	Rendered    int // pages wrapped in the template
	Copied      int // assets copied verbatim
	Drafts      int // draft pages skipped
	Written     int // outputs created or rewritten
	Unchanged   int // outputs already up to date
	Removed     int // stale outputs pruned
	Fingerprint string
	Duration    time.Duration
}

// Builder turns a site's sources into its output tree. It keeps no state
// between builds and is safe to reuse, but not to run concurrently.
type Builder struct {
	sourceRoot   string
	outputRoot   string
	indexDir     string
	pagesDir     string
	staticDir    string
	templatePath string
	clean        bool

	markdown *render.Markdown
	ignore   *ignore.Matcher
}

// New prepares a Builder for site. Paths are resolved to absolute paths.
func New(site models.SiteConfig) (*Builder, error) {
	sourceRoot, err := filepath.Abs(site.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source_root '%s': %w", site.SourceRoot, err)
	}
	outputRoot, err := filepath.Abs(site.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output_root '%s': %w", site.OutputRoot, err)
	}
	indexDir := outputRoot
	if site.IndexDir != "" {
		if indexDir, err = filepath.Abs(site.IndexDir); err != nil {
			return nil, fmt.Errorf("failed to resolve index_dir '%s': %w", site.IndexDir, err)
		}
	}

	md, err := render.NewMarkdown(render.Options{
		HighlightStyle: site.Markdown.HighlightStyle,
		Sanitize:       site.Markdown.Sanitize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure markdown: %w", err)
	}

	return &Builder{
		sourceRoot:   sourceRoot,
		outputRoot:   outputRoot,
		indexDir:     indexDir,
		pagesDir:     filepath.Join(sourceRoot, site.PagesDir),
		staticDir:    filepath.Join(sourceRoot, site.StaticDir),
		templatePath: filepath.Join(sourceRoot, site.Template),
		clean:        site.ShouldClean(),
		markdown:     md,
		ignore:       ignore.New(site.Ignore),
	}, nil
}

// SourceRoot returns the absolute source root.
func (b *Builder) SourceRoot() string { return b.sourceRoot }

// OutputRoot returns the absolute output root.
func (b *Builder) OutputRoot() string { return b.outputRoot }

// Build runs one full build. Cancelling ctx stops the build between source
// files; once writing has begun the build runs to completion.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{BuildID: uuid.NewString()}
	log := logger.L().With("build_id", res.BuildID)
	log.Debug("Build started.", "source_root", b.sourceRoot, "output_root", b.outputRoot)

	tmpl, err := loadTemplate(b.templatePath)
	if err != nil {
		return nil, err
	}
	sources, err := b.discover(ctx)
	if err != nil {
		return nil, err
	}

	outputs := make([]output, 0, len(sources)+1)
	renderedMarkdown := false
	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, draft, err := b.produce(s, tmpl)
		if err != nil {
			return nil, err
		}
		if draft {
			log.Debug("Skipping draft page.", "path", s.path)
			res.Drafts++
			continue
		}
		switch s.kind {
		case kindAsset:
			res.Copied++
		case kindMarkdown:
			renderedMarkdown = true
			res.Rendered++
		default:
			res.Rendered++
		}
		outputs = append(outputs, output{source: s, data: data, sum: xxh3.Hash(data)})
	}

	if renderedMarkdown && b.markdown.Highlighting() {
		css, err := b.stylesheet(outputs)
		if err != nil {
			return nil, err
		}
		if css != nil {
			outputs = append(outputs, *css)
		}
	}

	if err := os.MkdirAll(b.outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output_root '%s': %w", b.outputRoot, err)
	}

	keep := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		changed, err := writeIfChanged(o)
		if err != nil {
			return nil, err
		}
		if changed {
			log.Debug("Wrote output.", "path", o.key(), "kind", o.kind)
			res.Written++
		} else {
			res.Unchanged++
		}
		keep[o.dest] = true
	}

	if b.clean {
		removed, err := prune(b.outputRoot, keep, b.ignore)
		res.Removed = len(removed)
		for _, rel := range removed {
			log.Debug("Removed stale output.", "path", rel)
		}
		if err != nil {
			return nil, err
		}
		if b.indexDir != b.outputRoot {
			stale, err := b.pruneIndex(keep)
			if err != nil {
				return nil, err
			}
			if stale {
				log.Debug("Removed stale output.", "path", "@index/index.html")
				res.Removed++
			}
		}
	}

	res.Fingerprint = fingerprint(outputs)
	res.Duration = time.Since(start)
	log.Info("Build finished.",
		"rendered", res.Rendered,
		"copied", res.Copied,
		"written", res.Written,
		"unchanged", res.Unchanged,
		"removed", res.Removed,
		"fingerprint", res.Fingerprint,
		"duration", res.Duration,
	)
	return res, nil
}

// produce reads and renders one source. The bool result reports a draft page.
func (b *Builder) produce(s source, tmpl *pageTemplate) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read source '%s': %w", s.path, err)
	}

	switch s.kind {
	case kindHTML:
		return tmpl.execute(pageTitle(s.out), s.out, data), false, nil
	case kindMarkdown:
		meta, body, err := render.SplitFrontMatter(data)
		if err != nil {
			return nil, false, &SourceError{Path: s.path, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
		}
		if meta.Draft {
			return nil, true, nil
		}
		html, err := b.markdown.Render(body)
		if err != nil {
			return nil, false, &SourceError{Path: s.path, Err: fmt.Errorf("failed to render markdown: %w", err)}
		}
		title := meta.Title
		if title == "" {
			title = pageTitle(s.out)
		}
		return tmpl.execute(title, s.out, html), false, nil
	default:
		return data, false, nil
	}
}

// stylesheet renders the highlight stylesheet, or returns nil when a source
// already provides a file of that name.
func (b *Builder) stylesheet(outputs []output) (*output, error) {
	dest := filepath.Join(b.outputRoot, StylesheetName)
	for _, o := range outputs {
		if o.dest == dest {
			return nil, nil
		}
	}

	var buf bytes.Buffer
	if err := b.markdown.WriteStylesheet(&buf); err != nil {
		return nil, fmt.Errorf("failed to render highlight stylesheet: %w", err)
	}
	data := buf.Bytes()
	return &output{
		source: source{kind: kindAsset, out: StylesheetName, dest: dest},
		data:   data,
		sum:    xxh3.Hash(data),
	}, nil
}

// pruneIndex removes the relocated index page when no source produced it
// this build. It reports whether a file was removed.
func (b *Builder) pruneIndex(keep map[string]bool) (bool, error) {
	dest := filepath.Join(b.indexDir, "index.html")
	if keep[dest] {
		return false, nil
	}
	info, err := os.Lstat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect '%s': %w", dest, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if err := os.Remove(dest); err != nil {
		return false, fmt.Errorf("failed to remove stale output '%s': %w", dest, err)
	}
	return true, nil
}

func pageTitle(out string) string {
	return strings.TrimSuffix(path.Base(out), path.Ext(out))
}

// fingerprint hashes every output key and content hash in key order. Equal
// fingerprints mean byte-identical output trees.
func fingerprint(outputs []output) string {
	sorted := make([]output, len(outputs))
	copy(sorted, outputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key() < sorted[j].key() })

	h := xxh3.New()
	var sum [8]byte
	for _, o := range sorted {
		h.WriteString(o.key())
		h.Write([]byte{0})
		binary.BigEndian.PutUint64(sum[:], o.sum)
		h.Write(sum[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
