package config

import (
	"fmt"

	"github.com/cognicore/confstat/pkg/confstat/keyword"
)

// Loader loads the configuration file and constructs components
type Loader struct {
	ConfigPath string
	// LexiconPath overrides keywords.lexicon from the configuration.
	LexiconPath string
}

// Components holds the loaded configuration and what it builds
type Components struct {
	Config     *Config
	Normalizer *keyword.Normalizer
}

// Load reads the configuration and returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg, err := Load(l.ConfigPath)
	if err != nil {
		return nil, err
	}
	if l.LexiconPath != "" {
		cfg.Keywords.LexiconPath = l.LexiconPath
	}

	comp := &Components{Config: cfg, Normalizer: keyword.NewNormalizer()}
	if cfg.Keywords.LexiconPath != "" {
		lex, err := keyword.LoadLexicon(cfg.Keywords.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		comp.Normalizer.SetLexicon(lex)
	}
	return comp, nil
}
