// Package search is a small in-memory index over help sections written in
// Markdown. Each paragraph becomes a document tagged with the heading it
// sits under; queries rank documents by Jaccard similarity between the
// query's token set and the document's (heading plus body) token set.
//
// The index is read-only after construction and safe for concurrent use.
package search

import (
	"bytes"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Result is a ranked help paragraph.
type Result struct {
	Section string  `json:"section"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Index answers free-text help queries.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option tunes index construction.
type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
	maxDocs           int
}

func defaultConfig() config {
	return config{minParagraphRunes: 20}
}

// WithMinParagraphRunes drops paragraphs shorter than n runes.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithStopwords ignores the given words in documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed paragraphs.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// Paragraph is one indexable unit of a help document.
type Paragraph struct {
	Section string
	Text    string
}

type doc struct {
	section string
	text    string
	tokens  map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndexFromReader parses Markdown from r and indexes its paragraphs.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	all, err := io.ReadAll(r)
	if err != nil {
		return &index{cfg: cfg}, err
	}
	return buildIndex(SplitSections(all), cfg), nil
}

// NewIndex indexes already split paragraphs.
func NewIndex(paras []Paragraph, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return buildIndex(paras, cfg)
}

func buildIndex(paras []Paragraph, cfg config) *index {
	docs := make([]doc, 0, len(paras))
	for _, p := range paras {
		t := strings.TrimSpace(normalizeWhitespace(p.Text))
		if t == "" {
			continue
		}
		if cfg.minParagraphRunes > 0 && utf8.RuneCountInString(t) < cfg.minParagraphRunes {
			continue
		}
		toks := tokenize(p.Section+" "+t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{section: p.Section, text: t, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// Len returns the number of indexed paragraphs.
func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching paragraphs. k <= 0 means 3.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		d        doc
		score    float64
		lenRunes int
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, scored{d: d, score: float64(over) / union, lenRunes: utf8.RuneCountInString(d.text)})
	}
	if len(buf) == 0 {
		return nil
	}

	// Ties go to the shorter paragraph, then lexical order.
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].d.text < buf[b].d.text
	})

	k = min(k, len(buf))
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{Section: buf[n].d.section, Snippet: buf[n].d.text, Score: buf[n].score}
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

var headingRE = regexp.MustCompile(`^#{1,6}\s+(.*)$`)

// SplitSections splits Markdown into paragraphs separated by blank lines,
// tagging each with the nearest preceding heading. Headings are not
// paragraphs themselves.
func SplitSections(md []byte) []Paragraph {
	var (
		out     []Paragraph
		section string
		cur     []string
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, Paragraph{Section: section, Text: strings.Join(cur, "\n")})
			cur = cur[:0]
		}
	}
	for _, line := range bytes.Split(md, []byte("\n")) {
		l := strings.TrimSpace(string(line))
		if m := headingRE.FindStringSubmatch(l); m != nil {
			flush()
			section = strings.TrimSpace(m[1])
			continue
		}
		if l == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return out
}
