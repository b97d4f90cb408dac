package processing

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stopwords/english.yaml
var englishStopwords []byte

// Stopwords is a lower-cased token set.
type Stopwords map[string]struct{}

// NewStopwords builds a set from words, lower-casing each entry.
func NewStopwords(words ...string) Stopwords {
	s := make(Stopwords, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the lower-cased token is in the set.
func (s Stopwords) Contains(token string) bool {
	_, ok := s[strings.ToLower(token)]
	return ok
}

type stoplistFile struct {
	Terms []string `yaml:"terms"`
}

// ParseStopwords reads a YAML document with a top-level `terms` list.
func ParseStopwords(data []byte) (Stopwords, error) {
	var sl stoplistFile
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, fmt.Errorf("parse stoplist: %w", err)
	}
	return NewStopwords(sl.Terms...), nil
}

// LoadStopwords loads a stoplist file; an empty path selects the built-in
// English list.
func LoadStopwords(path string) (Stopwords, error) {
	if path == "" {
		return DefaultStopwords(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stoplist: %w", err)
	}
	return ParseStopwords(data)
}

// DefaultStopwords returns the built-in English list.
func DefaultStopwords() Stopwords {
	s, err := ParseStopwords(englishStopwords)
	if err != nil {
		panic(fmt.Sprintf("embedded stoplist: %v", err))
	}
	return s
}
