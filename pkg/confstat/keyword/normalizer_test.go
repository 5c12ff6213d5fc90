package keyword

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

func TestNormalizeCaseAndNumber(t *testing.T) {
	n := NewNormalizer()

	pairs := [][2]string{
		{"Large Language Models", "large language model"},
		{"GRAPH NEURAL NETWORKS", "graph neural network"},
		{"Transformers", "transformer"},
		{"Reinforcement Learning Policies", "reinforcement learning policy"},
		{"benchmark", "Benchmarks"},
	}

	for _, p := range pairs {
		a, b := n.Normalize(p[0]), n.Normalize(p[1])
		if a != b {
			t.Errorf("Normalize(%q)=%q, Normalize(%q)=%q, want equal", p[0], a, p[1], b)
		}
	}
}

func TestNormalizeOnlyLastWordSingularized(t *testing.T) {
	n := NewNormalizer()

	got := n.Normalize("Models of Transformers")
	if got != "models of transformer" {
		t.Errorf("expected inner words untouched, got %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	n := NewNormalizer()

	got := n.Normalize("  diffusion \t  models\n")
	if got != "diffusion model" {
		t.Errorf("expected single spaces, got %q", got)
	}

	for _, in := range []string{"", "   ", "\t\n", ",;"} {
		if got := n.Normalize(in); got != "" {
			t.Errorf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}

func TestNormalizeStripsPunctuation(t *testing.T) {
	n := NewNormalizer()

	got := n.Normalize("(State-of-the-art) Methods.")
	if got != "state-of-the-art method" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()

	inputs := []string{
		"Large Language Models",
		"Analyses",
		"policies",
		"Vision Transformers",
		"Federated Learning",
		"Ｆｕｌｌｗｉｄｔｈ Ｍｏｄｅｌｓ",
		"U.S.",
		"Children's",
		"Children",
		"Inductive Biases",
		"Campuses",
		"Houses",
		"Knowledge Bases",
		"GPUs",
		"K-Means",
		"Robotics",
		"heterogeneous",
		"",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeNilReceiver(t *testing.T) {
	var n *Normalizer
	if got := n.Normalize("Robots"); got != "robot" {
		t.Errorf("nil normalizer should still canonicalize, got %q", got)
	}
}

func TestSingularAlreadySingular(t *testing.T) {
	words := []string{
		"model", "network", "policy", "analysis", "data",
		"bias", "corpus", "consensus", "focus", "canvas", "chaos",
		"status", "virus", "process", "basis", "lens", "k-means",
		"robotics", "statistics", "series", "news",
		"autonomous", "heterogeneous", "u.s", "children's",
	}
	for _, w := range words {
		if got := Singular(w); got != w {
			t.Errorf("Singular(%q) = %q, want unchanged", w, got)
		}
	}
}

func TestSingularPlurals(t *testing.T) {
	tests := []struct {
		plural, want string
	}{
		{"models", "model"},
		{"policies", "policy"},
		{"analyses", "analysis"},
		{"biases", "bias"},
		{"campuses", "campus"},
		{"viruses", "virus"},
		{"houses", "house"},
		{"causes", "cause"},
		{"processes", "process"},
		{"children", "child"},
		{"bases", "base"},
		{"gpus", "gpu"},
		{"metrics", "metric"},
		{"matrices", "matrix"},
	}
	for _, tt := range tests {
		if got := Singular(tt.plural); got != tt.want {
			t.Errorf("Singular(%q) = %q, want %q", tt.plural, got, tt.want)
		}
		if again := Singular(tt.want); again != tt.want {
			t.Errorf("Singular(%q) = %q, want unchanged", tt.want, again)
		}
	}
}

func TestNormalizeKeepsSingularKeywords(t *testing.T) {
	n := NewNormalizer()

	pairs := [][2]string{
		{"Inductive Bias", "inductive bias"},
		{"Text Corpus", "text corpus"},
		{"Consensus", "consensus"},
		{"Focus", "focus"},
		{"Canvas", "canvas"},
		{"Chaos", "chaos"},
		{"U.S.", "u.s"},
		{"Inductive Biases", "inductive bias"},
	}
	for _, p := range pairs {
		if got := n.Normalize(p[0]); got != p[1] {
			t.Errorf("Normalize(%q) = %q, want %q", p[0], got, p[1])
		}
	}
}

func TestLexiconResolve(t *testing.T) {
	lex := NewLexicon()
	if err := lex.AddGroup("Large Language Models", []string{"LLM", "LLMs"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	n := NewNormalizer()
	n.SetLexicon(lex)

	for _, in := range []string{"LLM", "llms", "large language model"} {
		if got := n.Normalize(in); got != "large language model" {
			t.Errorf("Normalize(%q) = %q", in, got)
		}
	}

	once := n.Normalize("LLMs")
	if twice := n.Normalize(once); twice != once {
		t.Errorf("lexicon broke idempotency: %q -> %q", once, twice)
	}

	variants := lex.Variants("llm")
	if len(variants) != 2 || variants[0] != "large language model" {
		t.Errorf("unexpected variants %v", variants)
	}
}

func TestLexiconRejectsChains(t *testing.T) {
	lex := NewLexicon()
	if err := lex.AddGroup("reinforcement learning", []string{"rl"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	err := lex.AddGroup("rl", []string{"r.l."})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for canonical that is a variant, got %v", err)
	}

	err = lex.AddGroup("robot learning", []string{"reinforcement learning"})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for variant that is a canonical, got %v", err)
	}
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := `aliases:
  - canonical: large language model
    variants: [llm, llms]
  - canonical: graph neural network
    variants: [gnn]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}

	if got := lex.Resolve("gnn"); got != "graph neural network" {
		t.Errorf("Resolve(gnn) = %q", got)
	}
	if got := lex.Canonicals(); len(got) != 2 || got[0] != "graph neural network" {
		t.Errorf("Canonicals = %v", got)
	}
}

func TestLoadLexiconMissingFile(t *testing.T) {
	if _, err := LoadLexicon("/nonexistent/lexicon.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
