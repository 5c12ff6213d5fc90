package keyword

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// Lexicon maps normalized keyword variants to a preferred canonical form:
// - Acronyms: "llm" → "large language model"
// - Spelling variants: "optimisation" → "optimization"
//
// Every entry is normalized with Canonical on insertion, so resolving an
// already-resolved keyword is a no-op.
type Lexicon struct {
	// canonical -> all variants (including canonical itself)
	groups map[string][]string

	// variant -> canonical
	reverseIndex map[string]string
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{
		groups:       make(map[string][]string),
		reverseIndex: make(map[string]string),
	}
}

// LoadLexicon loads alias groups from a YAML file.
//
// Expected format:
//
//	aliases:
//	  - canonical: large language model
//	    variants: [llm, llms]
//	  - canonical: reinforcement learning
//	    variants: [rl]
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Aliases []struct {
			Canonical string   `yaml:"canonical"`
			Variants  []string `yaml:"variants"`
		} `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}

	lex := NewLexicon()
	for _, entry := range config.Aliases {
		if err := lex.AddGroup(entry.Canonical, entry.Variants); err != nil {
			return nil, fmt.Errorf("lexicon %s: %w", path, err)
		}
	}
	return lex, nil
}

// AddGroup registers variants of canonical. A canonical form that is
// already a variant of another group, or a variant claimed by another
// group, is rejected.
func (l *Lexicon) AddGroup(canonical string, variants []string) error {
	canonical = Canonical(canonical)
	if canonical == "" {
		return fmt.Errorf("%w: empty canonical keyword", internalerr.ErrInvalidConfig)
	}
	if owner, ok := l.reverseIndex[canonical]; ok && owner != canonical {
		return fmt.Errorf("%w: %q is already a variant of %q", internalerr.ErrInvalidConfig, canonical, owner)
	}

	group := []string{canonical}
	seen := map[string]bool{canonical: true}
	for _, v := range variants {
		v = Canonical(v)
		if v == "" || seen[v] {
			continue
		}
		if owner, ok := l.reverseIndex[v]; ok && owner != canonical {
			return fmt.Errorf("%w: %q is already a variant of %q", internalerr.ErrInvalidConfig, v, owner)
		}
		if _, isCanonical := l.groups[v]; isCanonical {
			return fmt.Errorf("%w: %q is itself a canonical keyword", internalerr.ErrInvalidConfig, v)
		}
		seen[v] = true
		group = append(group, v)
	}

	l.groups[canonical] = append(l.groups[canonical], group...)
	for _, v := range group {
		l.reverseIndex[v] = canonical
	}
	return nil
}

// Resolve returns the preferred form of a normalized keyword, or the
// keyword itself when no group claims it.
func (l *Lexicon) Resolve(normalized string) string {
	if canonical, ok := l.reverseIndex[normalized]; ok {
		return canonical
	}
	return normalized
}

// Variants returns every known form of keyword's group, canonical first.
func (l *Lexicon) Variants(keyword string) []string {
	canonical := l.Resolve(Canonical(keyword))
	if group, ok := l.groups[canonical]; ok {
		return dedupe(group)
	}
	return []string{canonical}
}

// Canonicals lists the canonical forms in sorted order.
func (l *Lexicon) Canonicals() []string {
	out := make([]string, 0, len(l.groups))
	for c := range l.groups {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
