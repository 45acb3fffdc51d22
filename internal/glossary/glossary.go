// Package glossary pins domain vocabulary to fixed translations by masking
// source terms with placeholder tokens before machine translation and
// restoring the configured translations afterwards.
package glossary

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one source term and its fixed target-language translation.
type Entry struct {
	Term        string
	Translation string
}

type compiledEntry struct {
	Entry
	re *regexp.Regexp
}

// Glossary is an ordered, immutable set of entries. Order decides placeholder
// numbering and which term wins when terms overlap.
type Glossary struct {
	entries []compiledEntry
}

// New builds a glossary from entries in the given order. A repeated term keeps
// its first position and takes the last translation.
func New(entries ...Entry) Glossary {
	compiled := make([]compiledEntry, 0, len(entries))
	positions := make(map[string]int, len(entries))
	for _, entry := range entries {
		if pos, ok := positions[entry.Term]; ok {
			compiled[pos].Translation = entry.Translation
			continue
		}
		var re *regexp.Regexp
		if entry.Term != "" {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(entry.Term))
		}
		positions[entry.Term] = len(compiled)
		compiled = append(compiled, compiledEntry{Entry: entry, re: re})
	}
	return Glossary{entries: compiled}
}

// Load reads a JSON object of term -> translation. An empty path yields an
// empty glossary.
func Load(path string) (Glossary, error) {
	if strings.TrimSpace(path) == "" {
		return Glossary{}, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return Glossary{}, fmt.Errorf("failed to read glossary %q: %w", path, err)
	}
	g, err := Parse(contents)
	if err != nil {
		return Glossary{}, fmt.Errorf("failed to parse glossary %q: %w", path, err)
	}
	return g, nil
}

// Parse decodes a glossary document, keeping the key order of the object.
func Parse(data []byte) (Glossary, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Glossary{}, err
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return Glossary{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind == 0 {
		return Glossary{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return Glossary{}, errors.New("glossary must be an object of term to translation")
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return Glossary{}, fmt.Errorf("line %d: translation for %q must be a string", value.Line, key.Value)
		}
		entries = append(entries, Entry{Term: key.Value, Translation: value.Value})
	}
	return New(entries...), nil
}

// Len reports the number of entries.
func (g Glossary) Len() int {
	return len(g.entries)
}

// Entries returns the entries in glossary order.
func (g Glossary) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	for i, entry := range g.entries {
		out[i] = entry.Entry
	}
	return out
}
