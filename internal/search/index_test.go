package search

import (
	"errors"
	"strings"
	"testing"
)

type boomReader struct{}

func (boomReader) Read(_ []byte) (int, error) { return 0, errors.New("boom") }

func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.minParagraphRunes != 20 || def.stopwords != nil || def.maxDocs != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	cfg := def
	WithMinParagraphRunes(10)(&cfg)
	WithMinParagraphRunes(-5)(&cfg) // ignored
	if cfg.minParagraphRunes != 10 {
		t.Fatalf("minParagraphRunes = %d", cfg.minParagraphRunes)
	}

	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("stopwords missing 'the': %#v", cfg.stopwords)
	}
	cfg2 := def
	WithStopwords(nil)(&cfg2)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg) // ignored
	if cfg.maxDocs != 2 {
		t.Fatalf("maxDocs = %d", cfg.maxDocs)
	}
}

func TestSplitSections(t *testing.T) {
	md := "# Title\n\nintro line\n\n## Shooting\n\nfirst para\ncontinues here\n\nsecond para\n## Empty\n"
	got := SplitSections([]byte(md))
	want := []Paragraph{
		{Section: "Title", Text: "intro line"},
		{Section: "Shooting", Text: "first para\ncontinues here"},
		{Section: "Shooting", Text: "second para"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("para %d = %#v; want %#v", i, got[i], want[i])
		}
	}
}

func TestNewIndexFromReader_Error(t *testing.T) {
	idx, err := NewIndexFromReader(boomReader{})
	if err == nil {
		t.Fatalf("expected read error")
	}
	if idx == nil || idx.Len() != 0 {
		t.Fatalf("expected empty non-nil index")
	}
}

func TestBuildIndex_FiltersAndMaxDocs(t *testing.T) {
	paras := []Paragraph{
		{Text: "   "},
		{Text: "short"},
		{Text: "!!! ??? ... --- *** ### $$$ %%% &&&"},
		{Section: "Ducks", Text: "Each duck mint comes with a free zapper"},
		{Section: "Zappers", Text: "Each shot burns one zapper permanently"},
	}
	idx := NewIndex(paras)
	if idx.Len() != 2 {
		t.Fatalf("Len = %d", idx.Len())
	}
	if NewIndex(paras, WithMaxDocs(1)).Len() != 1 {
		t.Fatalf("max docs not applied")
	}
	if NewIndex(paras, WithMinParagraphRunes(0)).Len() != 3 {
		t.Fatalf("zero min runes should keep 'short'")
	}
}

func TestTopK_SectionTokensCountAndTieBreak(t *testing.T) {
	idx := NewIndex([]Paragraph{
		{Section: "Refunds", Text: "No. Once a mint is confirmed you are committed."},
		{Section: "Targets", Text: "Each shot fires at a random live Duck."},
		{Section: "Targets", Text: "Each shot fires at a random live Duck, sometimes missing."},
	}, WithMinParagraphRunes(0))

	res := idx.TopK("refunds", 5)
	if len(res) != 1 || res[0].Section != "Refunds" {
		t.Fatalf("heading match failed: %#v", res)
	}

	res = idx.TopK("random duck", 0)
	if len(res) != 2 || !strings.HasSuffix(res[0].Snippet, "live Duck.") {
		t.Fatalf("expected shorter paragraph first: %#v", res)
	}
	if res[0].Score <= res[1].Score {
		t.Fatalf("scores not descending: %#v", res)
	}

	if idx.TopK("   ", 3) != nil || idx.TopK("zzz", 3) != nil || idx.TopK("!!!", 3) != nil {
		t.Fatalf("expected nil for blank, unmatched and token-less queries")
	}
	if NewIndex(nil).TopK("duck", 3) != nil {
		t.Fatalf("empty index should return nil")
	}
}

func TestTokenizeAndOverlap(t *testing.T) {
	toks := tokenize("Duck #42 zap2 the", map[string]struct{}{"the": {}})
	if _, ok := toks["duck"]; !ok {
		t.Fatalf("missing duck: %#v", toks)
	}
	if _, ok := toks["zap2"]; !ok {
		t.Fatalf("missing zap2: %#v", toks)
	}
	if _, ok := toks["the"]; ok {
		t.Fatalf("stopword kept")
	}
	if tokenize("123 !!!", nil) != nil {
		t.Fatalf("expected nil for no letters")
	}
	a := map[string]struct{}{"x": {}, "y": {}, "z": {}}
	b := map[string]struct{}{"y": {}}
	if overlap(a, b) != 1 || overlap(b, a) != 1 {
		t.Fatalf("overlap wrong")
	}
	if got := normalizeWhitespace("a \t\n b"); got != "a b" {
		t.Fatalf("normalizeWhitespace = %q", got)
	}
}
