package taxonomy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrWriteConflict is returned when the taxonomy file changed on disk
// between a read and a write. Callers should reload and retry.
var ErrWriteConflict = errors.New("taxonomy: write conflict, reload and retry")

// Document is the on-disk taxonomy format.
type Document struct {
	Version    int                 `json:"version"`    // Incremented on every successful write
	Categories map[string][]string `json:"categories"` // Category name -> canonical tags
	Parents    map[string]string   `json:"parents"`    // Tag -> parent tag (static hierarchy)
	Proposed   []string            `json:"proposed"`   // Tags pending human review
}

// Store is a file-backed taxonomy with optimistic concurrency control.
// Writes rewrite the whole file through a temp-file rename; the version
// check turns concurrent lost updates into ErrWriteConflict.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the taxonomy file at path, seeding the file
// with defaults if it does not exist.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create taxonomy directory: %w", err)
		}
		if err := s.write(DefaultDocument()); err != nil {
			return nil, fmt.Errorf("failed to seed taxonomy file: %w", err)
		}
	}

	return s, nil
}

// DefaultDocument returns the built-in seed taxonomy.
func DefaultDocument() *Document {
	return &Document{
		Version: 1,
		Categories: map[string][]string{
			"technology": {"ai", "neural_network", "apple_inc", "software", "hardware", "startups"},
			"politics":   {"elections", "foreign_policy", "legislation"},
			"economy":    {"markets", "inflation", "energy", "crypto"},
			"science":    {"space", "climate", "medicine", "research"},
			"food":       {"фрукты", "recipes", "agriculture"},
			"general":    {"world", "society", "culture", "sports"},
		},
		Parents: map[string]string{
			"neural_network": "ai",
			"ai":             "technology",
			"apple_inc":      "technology",
			"crypto":         "economy",
			"elections":      "politics",
		},
		Proposed: []string{},
	}
}

// Load reads the current taxonomy document from disk.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	if doc.Categories == nil {
		doc.Categories = make(map[string][]string)
	}
	if doc.Parents == nil {
		doc.Parents = make(map[string]string)
	}
	return doc, nil
}

func (s *Store) write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal taxonomy: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write taxonomy temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace taxonomy file: %w", err)
	}
	return nil
}

// Save writes doc back, but only if the on-disk version still matches
// doc's base version. On success the stored version is doc.Version+1.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	if current.Version != doc.Version {
		return ErrWriteConflict
	}

	next := *doc
	next.Version = doc.Version + 1
	return s.write(&next)
}

// Propose appends tag to the pending-review list if it is not already
// known, retrying once on a concurrent write. Returns true when the tag
// was newly proposed.
func (s *Store) Propose(tag string) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		doc, err := s.Load()
		if err != nil {
			return false, err
		}
		if doc.HasTag(tag) || contains(doc.Proposed, tag) {
			return false, nil
		}

		doc.Proposed = append(doc.Proposed, tag)
		sort.Strings(doc.Proposed)

		err = s.Save(doc)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrWriteConflict) {
			return false, err
		}
	}
	return false, ErrWriteConflict
}

// HasTag reports whether tag is canonical in any category.
func (d *Document) HasTag(tag string) bool {
	for _, tags := range d.Categories {
		if contains(tags, tag) {
			return true
		}
	}
	return false
}

// AllTags returns the sorted union of canonical tags across categories.
func (d *Document) AllTags() []string {
	seen := make(map[string]bool)
	var all []string
	for _, tags := range d.Categories {
		for _, tag := range tags {
			if !seen[tag] {
				seen[tag] = true
				all = append(all, tag)
			}
		}
	}
	sort.Strings(all)
	return all
}

// Ancestors returns the parent chain of tag, nearest first.
func (d *Document) Ancestors(tag string) []string {
	var chain []string
	seen := map[string]bool{tag: true}
	for {
		parent, ok := d.Parents[tag]
		if !ok || seen[parent] {
			return chain
		}
		chain = append(chain, parent)
		seen[parent] = true
		tag = parent
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
