package search

import (
	"bufio"
	"bytes"
	_ "embed"
	"io"
	"strings"
	"sync"
)

//go:embed help.md
var helpDoc []byte

// FlattenTables rewrites Markdown table rows into standalone paragraphs so
// each row is indexed on its own. Separator rows are dropped; other lines
// pass through unchanged.
func FlattenTables(r io.Reader) ([]byte, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header []string
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			if inTable {
				b.WriteByte('\n')
			}
			inTable, header = false, nil
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}

		cells := splitRow(line)
		if isSeparator(cells) {
			continue
		}
		if !inTable {
			// The first row names the columns.
			inTable, header = true, cells
			continue
		}
		var parts []string
		for i, c := range cells {
			if c == "" {
				continue
			}
			if i > 0 && i < len(header) && header[i] != "" {
				c = header[i] + ": " + c
			}
			parts = append(parts, c)
		}
		if len(parts) > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Join(parts, ". "))
			b.WriteString(".\n")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func splitRow(line string) []string {
	raw := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, len(raw))
	for i, c := range raw {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, ":- ") != "" {
			return false
		}
	}
	return true
}

var (
	helpOnce  sync.Once
	helpIndex Index
	helpErr   error
)

// Help returns the index over the bundled help document.
func Help() (Index, error) {
	helpOnce.Do(func() {
		flat, err := FlattenTables(bytes.NewReader(helpDoc))
		if err != nil {
			helpErr = err
			return
		}
		helpIndex, helpErr = NewIndexFromReader(bytes.NewReader(flat),
			WithStopwords(DefaultStopwords))
	})
	return helpIndex, helpErr
}

// DefaultStopwords are skipped when indexing help text.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "can", "do", "does", "for",
	"how", "i", "if", "in", "is", "it", "my", "of", "on", "or", "the", "this",
	"to", "what", "when", "where", "which", "why", "with", "you", "your",
}
