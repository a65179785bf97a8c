package builder

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"
)

const (
	contentKey = "{{content}}"
	titleKey   = "{{title}}"
	pathKey    = "{{path}}"
)

// pageTemplate is a template split around the line holding the content key.
type pageTemplate struct {
	head string
	tail string
}

func loadTemplate(path string) (*pageTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template '%s': %w", path, err)
	}
	return parseTemplate(path, string(data))
}

// parseTemplate replaces the whole line containing the content key. When
// several lines contain it the last one wins.
func parseTemplate(path, text string) (*pageTemplate, error) {
	lines := strings.SplitAfter(text, "\n")
	at := -1
	for i, line := range lines {
		if strings.Contains(line, contentKey) {
			at = i
		}
	}
	if at < 0 {
		return nil, malformed(path, "template has no %s line", contentKey)
	}
	return &pageTemplate{
		head: strings.Join(lines[:at], ""),
		tail: strings.Join(lines[at+1:], ""),
	}, nil
}

// execute wraps body in the template. Placeholders are only substituted in
// the template text, never in the body, and their values are HTML escaped.
func (t *pageTemplate) execute(title, outPath string, body []byte) []byte {
	r := strings.NewReplacer(titleKey, html.EscapeString(title), pathKey, html.EscapeString(outPath))

	var buf bytes.Buffer
	buf.Grow(len(t.head) + len(body) + len(t.tail) + 1)
	buf.WriteString(r.Replace(t.head))
	buf.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(r.Replace(t.tail))
	return buf.Bytes()
}
