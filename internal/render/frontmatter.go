package render

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrFrontMatter is returned for front matter that is unterminated or not valid YAML.
var ErrFrontMatter = errors.New("invalid front matter")

const frontMatterFence = "---"

// FrontMatter is the YAML header a Markdown page may start with.
type FrontMatter struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
	Draft bool   `yaml:"draft"`
}

// SplitFrontMatter separates an optional leading "---" fenced YAML block from
// the page body. Sources without a fence on their first line are returned
// unchanged with an empty FrontMatter.
func SplitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	first, rest, found := cutLine(src)
	if !found || string(bytes.TrimRight(first, " \t\r")) != frontMatterFence {
		return fm, src, nil
	}

	header := rest
	offset := 0
	for {
		line, remainder, more := cutLine(rest)
		if string(bytes.TrimRight(line, " \t\r")) == frontMatterFence {
			if err := yaml.Unmarshal(header[:offset], &fm); err != nil {
				return fm, nil, fmt.Errorf("%w: %v", ErrFrontMatter, err)
			}
			return fm, remainder, nil
		}
		if !more {
			return fm, nil, fmt.Errorf("%w: missing closing %q", ErrFrontMatter, frontMatterFence)
		}
		offset += len(line) + 1
		rest = remainder
	}
}

// cutLine splits b at the first newline. found is false when b has no newline,
// in which case line is all of b.
func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, false
}
