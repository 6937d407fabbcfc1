// Package synonym implements the corporate glossary used to expand
// search queries and inferred domains (spec §4.3): a fixed built-in
// map overlaid by an optional YAML file, plus a learned-association
// table populated at runtime.
package synonym

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// builtin is the fixed corporate glossary. Entries are lowercase and
// unaccented; callers are expected to normalize before lookup.
var builtin = map[string][]string{
	"vendas":     {"faturamento", "receita"},
	"receita":    {"vendas", "faturamento"},
	"cliente":    {"consumidor", "comprador"},
	"produto":    {"item", "mercadoria"},
	"consignado": {"consig"},
	"imobiliario": {"imob"},
	"cartao":     {"cartoes"},
	"cpf":        {"documento_pessoa_fisica"},
	"cnpj":       {"documento_pessoa_juridica"},
}

// Dictionary is a thread-safe synonym lookup table. The zero value is
// not usable; construct with New.
type Dictionary struct {
	mu      sync.RWMutex
	static  map[string][]string // builtin + YAML overlay, replaced wholesale by Reload
	learned map[string]map[string]struct{}
}

// yamlDoc is the shape of the optional overlay file: term -> [synonym, …].
type yamlDoc map[string][]string

// New builds a Dictionary from the built-in map, optionally overlaid by
// a YAML file at path (path may be empty to skip the overlay).
func New(path string) (*Dictionary, error) {
	d := &Dictionary{
		static:  cloneMap(builtin),
		learned: make(map[string]map[string]struct{}),
	}
	if path == "" {
		return d, nil
	}
	if err := d.Reload(path); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the YAML overlay at path and merges it into the
// built-in glossary, replacing any prior overlay entries. A missing
// file is not an error (the overlay is optional); used both by New and
// by Watch's fsnotify callback (spec §4.14 "hot-reload the synonym
// dictionary YAML file").
func (d *Dictionary) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("synonym: reading %s: %w", path, err)
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("synonym: parsing %s: %w", path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	static := cloneMap(builtin)
	for term, syns := range doc {
		term = normalize(term)
		existing := static[term]
		for _, s := range syns {
			existing = appendUnique(existing, normalize(s))
		}
		static[term] = existing
	}
	d.static = static
	return nil
}

func cloneMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func appendUnique(list []string, val string) []string {
	for _, v := range list {
		if v == val {
			return list
		}
	}
	return append(list, val)
}

// GetSynonyms returns the union of the built-in/YAML entry for term,
// any learned entry, and reverse-lookup entries (terms for which term
// is itself declared a synonym) — minus term itself. The result is
// sorted for determinism.
func (d *Dictionary) GetSynonyms(term string) []string {
	term = normalize(term)
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := make(map[string]struct{})
	for _, s := range d.static[term] {
		if s != term {
			set[s] = struct{}{}
		}
	}
	for s := range d.learned[term] {
		if s != term {
			set[s] = struct{}{}
		}
	}
	for other, syns := range d.static {
		if other == term {
			continue
		}
		for _, s := range syns {
			if s == term {
				set[other] = struct{}{}
			}
		}
	}
	for other, syns := range d.learned {
		if other == term {
			continue
		}
		for s := range syns {
			if s == term {
				set[other] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ExpandQuery substitutes each word in query with up to maxExpansions
// synonyms, returning the original query followed by up to
// maxExpansions variants in stable, deterministic order.
func (d *Dictionary) ExpandQuery(query string, maxExpansions int) []string {
	variants := []string{query}
	if maxExpansions <= 0 {
		return variants
	}
	words := strings.Fields(query)
	count := 0
	for i, w := range words {
		norm := normalize(strings.Trim(w, ".,;:!?"))
		syns := d.GetSynonyms(norm)
		for _, s := range syns {
			if count >= maxExpansions {
				return variants
			}
			replaced := make([]string, len(words))
			copy(replaced, words)
			replaced[i] = s
			variants = append(variants, strings.Join(replaced, " "))
			count++
		}
	}
	return variants
}

// Learn records a bidirectional learned association between term and
// synonym: each becomes retrievable from the other via GetSynonyms.
func (d *Dictionary) Learn(term, synonym string) {
	term, synonym = normalize(term), normalize(synonym)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.learned[term] == nil {
		d.learned[term] = make(map[string]struct{})
	}
	d.learned[term][synonym] = struct{}{}
	if d.learned[synonym] == nil {
		d.learned[synonym] = make(map[string]struct{})
	}
	d.learned[synonym][term] = struct{}{}
}

// SaveLearned persists only the learned portion (not the built-in or
// YAML-overlay static entries) to path as YAML.
func (d *Dictionary) SaveLearned(path string) error {
	d.mu.RLock()
	doc := make(yamlDoc, len(d.learned))
	for term, syns := range d.learned {
		list := make([]string, 0, len(syns))
		for s := range syns {
			list = append(list, s)
		}
		sort.Strings(list)
		doc[term] = list
	}
	d.mu.RUnlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("synonym: marshaling learned entries: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("synonym: writing %s: %w", path, err)
	}
	return nil
}
