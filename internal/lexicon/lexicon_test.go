package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRewritesWholeWords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pronunciations.lex")
	contents := `
# databases
SQL => sequel
NoSQL => no sequel
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write lexicon file: %v", err)
	}

	lex, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if lex.Len() != 2 {
		t.Fatalf("expected 2 terms, got %d", lex.Len())
	}

	got := lex.Rewrite("Compare sql and NoSQL stores, not SQLite.")
	if got != "Compare sequel and no sequel stores, not SQLite." {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRewritePrefersLongestTerm(t *testing.T) {
	t.Parallel()

	lex := New(map[string]string{
		"C":   "see",
		"C++": "see plus plus",
		"C#":  "see sharp",
	})

	got := lex.Rewrite("Have you used C++, C# or C?")
	if got != "Have you used see plus plus, see sharp or see?" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRewriteDoesNotRewriteReplacements(t *testing.T) {
	t.Parallel()

	lex := New(map[string]string{
		"k8s":  "kubernetes",
		"kube": "kubernetes",
		"Go":   "Go lang",
	})

	got := lex.Rewrite("Go on k8s, kube and go")
	if got != "Go lang on kubernetes, kubernetes and Go lang" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRewriteAdjacentTerms(t *testing.T) {
	t.Parallel()

	lex := New(map[string]string{"API": "A P I"})
	if got := lex.Rewrite("API API,API"); got != "A P I A P I,A P I" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	t.Parallel()

	_, err := Parse("SQL => sequel\njust words\n")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error: %v", err)
	}

	if _, err := Parse(" => empty term"); err == nil {
		t.Fatalf("expected error for empty term")
	}
}

func TestParseLaterLineWins(t *testing.T) {
	t.Parallel()

	lex, err := Parse("gRPC => g R P C\ngrpc => gee are pee see\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if lex.Len() != 1 {
		t.Fatalf("expected duplicate terms to collapse, got %d", lex.Len())
	}
	if got := lex.Rewrite("gRPC"); got != "gee are pee see" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	lex, err := Load(filepath.Join(t.TempDir(), "absent.lex"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if lex.Len() != 0 || lex.Rewrite("SQL") != "SQL" {
		t.Fatalf("expected empty lexicon")
	}

	blank, err := Load("")
	if err != nil || blank.Len() != 0 {
		t.Fatalf("expected empty lexicon for unset path, got %v", err)
	}
}

func TestNilLexiconPassesThrough(t *testing.T) {
	t.Parallel()

	var lex *Lexicon
	if lex.Len() != 0 || lex.Rewrite("unchanged") != "unchanged" {
		t.Fatalf("nil lexicon must pass text through")
	}
}
