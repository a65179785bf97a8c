package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type sourceKind int

const (
	kindHTML sourceKind = iota
	kindMarkdown
	kindAsset
)

func (k sourceKind) String() string {
	switch k {
	case kindHTML:
		return "html"
	case kindMarkdown:
		return "markdown"
	default:
		return "asset"
	}
}

// source is one input file and where its output goes.
type source struct {
	path      string // absolute source path
	kind      sourceKind
	out       string // output path relative to the output root, slash separated
	dest      string // absolute destination path
	relocated bool   // written to the index directory instead of the output root
}

// key identifies the output in fingerprints.
func (s source) key() string {
	if s.relocated {
		return "@index/" + s.out
	}
	return s.out
}

func classify(rel string) (sourceKind, string) {
	ext := path.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return kindHTML, stem + ".html"
	case ".md", ".markdown":
		return kindMarkdown, stem + ".html"
	default:
		return kindAsset, rel
	}
}

// discover lists every source under pages and static in lexical order and
// resolves its destination. Two sources claiming one destination are malformed.
func (b *Builder) discover(ctx context.Context) ([]source, error) {
	var sources []source
	claimed := make(map[string]string)

	add := func(s source) error {
		if prev, ok := claimed[s.dest]; ok {
			return malformed(s.path, "output %s is also produced by %s", s.out, prev)
		}
		claimed[s.dest] = s.path
		sources = append(sources, s)
		return nil
	}

	err := b.walk(ctx, b.pagesDir, true, func(abs, rel string) error {
		kind, out := classify(rel)
		s := source{path: abs, kind: kind, out: out, dest: filepath.Join(b.outputRoot, filepath.FromSlash(out))}
		if kind != kindAsset && out == "index.html" && b.indexDir != b.outputRoot {
			s.dest = filepath.Join(b.indexDir, "index.html")
			s.relocated = true
		}
		return add(s)
	})
	if err != nil {
		return nil, err
	}

	err = b.walk(ctx, b.staticDir, false, func(abs, rel string) error {
		return add(source{path: abs, kind: kindAsset, out: rel, dest: filepath.Join(b.outputRoot, filepath.FromSlash(rel))})
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// walk calls fn for each file below root with its slash separated path
// relative to root. A missing root is an error only when required.
func (b *Builder) walk(ctx context.Context, root string, required bool, fn func(abs, rel string) error) error {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to scan '%s': %w", root, err)
	}

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to scan '%s': %w", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if b.ignore.Ignored(rel) || p == b.templatePath {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		return fn(p, filepath.ToSlash(rel))
	})
}
