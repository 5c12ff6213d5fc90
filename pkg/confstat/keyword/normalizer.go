package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes raw keywords so that case and the grammatical
// number of the final word do not split counts.
type Normalizer struct {
	lexicon *Lexicon // Optional: preferred canonical forms
}

// NewNormalizer creates a normalizer without a lexicon.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// SetLexicon assigns a lexicon mapping normalized forms to preferred ones.
// Example: "llm" → "large language model"
func (n *Normalizer) SetLexicon(lex *Lexicon) {
	n.lexicon = lex
}

// Normalize returns the canonical form of raw.
// Empty or whitespace-only input yields "".
func (n *Normalizer) Normalize(raw string) string {
	canonical := Canonical(raw)
	if canonical == "" || n == nil || n.lexicon == nil {
		return canonical
	}
	return n.lexicon.Resolve(canonical)
}

// Canonical lowercases every word of raw and singularizes the last one.
//
// Examples:
//   - Canonical("Large Language Models") -> "large language model"
//   - Canonical("  Graph   neural NETWORKS ") -> "graph neural network"
func Canonical(raw string) string {
	words := Words(raw)
	if len(words) == 0 {
		return ""
	}
	last := len(words) - 1
	// Trimmed again so a stripped suffix never leaves trailing punctuation.
	words[last] = cleanWord(Singular(words[last]))
	return strings.Join(words, " ")
}

// Words splits raw on whitespace into lowercased tokens with surrounding
// punctuation stripped. Tokens that are pure punctuation are dropped.
func Words(raw string) []string {
	fields := strings.Fields(norm.NFKC.String(raw))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := cleanWord(f)
		if w == "" {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return words
}

// Singular returns the singular form of a lowercase word. Only a word
// ending in a letter followed by "s", or a known irregular plural, is
// changed; anything already singular comes back unchanged, so
// Singular(Singular(w)) == Singular(w).
func Singular(word string) string {
	if s, ok := irregularPlurals[word]; ok {
		return s
	}
	if !endsInLetterS(word) || keepsFinalS(word) {
		return word
	}
	if stem, ok := strings.CutSuffix(word, "es"); ok && isSingularStem(stem) {
		return stem
	}
	out := strings.ToLower(inflection.Singular(word))
	if out == "" {
		return word
	}
	return out
}

// singularWords end in "s" but are singular or mass nouns.
var singularWords = map[string]bool{
	"alias": true, "atlas": true, "bias": true, "canvas": true, "gas": true,
	"pancreas": true, "chaos": true, "cosmos": true, "ethos": true, "kudos": true,
	"logos": true, "pathos": true, "thermos": true, "lens": true, "bayes": true,
	"means": true, "k-means": true, "news": true, "series": true, "species": true,
	"diabetes": true, "kubernetes": true, "pandas": true,
	"acoustics": true, "aesthetics": true, "analytics": true, "bioinformatics": true,
	"dynamics": true, "economics": true, "electronics": true, "epigenetics": true,
	"ethics": true, "genomics": true, "graphics": true, "informatics": true,
	"kinematics": true, "linguistics": true, "logistics": true, "mathematics": true,
	"mechanics": true, "metabolomics": true, "optics": true, "phonetics": true,
	"physics": true, "pragmatics": true, "proteomics": true, "robotics": true,
	"semantics": true, "statistics": true, "thermodynamics": true, "transcriptomics": true,
}

// irregularPlurals are plurals the suffix rules get wrong.
var irregularPlurals = map[string]string{
	"children": "child", "people": "person", "men": "man", "women": "woman",
	"mice": "mouse", "feet": "foot", "teeth": "tooth", "geese": "goose",
	"criteria": "criterion", "phenomena": "phenomenon", "bases": "base",
	"gpus": "gpu", "cpus": "cpu", "tpus": "tpu", "npus": "npu",
	"menus": "menu", "gurus": "guru", "emus": "emu",
}

func endsInLetterS(word string) bool {
	rest, ok := strings.CutSuffix(word, "s")
	if !ok || rest == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(rest)
	return unicode.IsLetter(r)
}

// keepsFinalS reports words whose final "s" is not a plural marker:
// "process", "corpus", "analysis" and the listed exceptions.
func keepsFinalS(word string) bool {
	if singularWords[word] {
		return true
	}
	for _, suffix := range []string{"ss", "us", "is"} {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}
	return false
}

// isSingularStem matches "biases" -> "bias" and "campuses" -> "campus"
// but not "houses" or "causes", whose singular keeps the "e".
func isSingularStem(stem string) bool {
	if singularWords[stem] {
		return true
	}
	head, ok := strings.CutSuffix(stem, "us")
	if !ok || head == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(head)
	return unicode.IsLetter(r) && !strings.ContainsRune("aeiou", r)
}

// cleanWord strips leading and trailing punctuation, keeping inner
// hyphens, apostrophes and dots ("state-of-the-art", "u.s.").
func cleanWord(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
