// Package registry holds the static tool catalog used for compatibility scoring.
// A Registry is built once and only read afterwards, so it is safe to share
// between goroutines.
package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed catalog.toml
var builtinCatalog []byte

// Tool is a single catalog entry.
type Tool struct {
	ID            string            `toml:"id" json:"id"`
	Name          string            `toml:"name" json:"name"`
	Category      string            `toml:"category" json:"category"`
	BaseScore     int               `toml:"baseScore" json:"baseScore"`
	Affinities    []string          `toml:"affinity" json:"affinity,omitempty"`
	Frictions     []string          `toml:"friction" json:"friction,omitempty"`
	FrictionNotes map[string]string `toml:"frictionNotes" json:"frictionNotes,omitempty"`
	Install       string            `toml:"install" json:"install,omitempty"`

	affinity map[string]bool
	friction map[string]bool
}

// DeclaresAffinity reports whether t itself lists other as an affinity.
func (t *Tool) DeclaresAffinity(other string) bool {
	return t.affinity[other]
}

// DeclaresFriction reports whether t itself lists other as a friction.
func (t *Tool) DeclaresFriction(other string) bool {
	return t.friction[other]
}

// catalogFile is the on-disk shape of a catalog.
type catalogFile struct {
	Tools []Tool `toml:"tool"`
}

// Registry is an immutable, indexed tool catalog.
type Registry struct {
	tools      map[string]*Tool
	ids        []string
	byCategory map[string][]string
	categories []string
}

// New indexes tools. Ids must be unique and base scores within 0..100.
func New(tools []Tool) (*Registry, error) {
	r := &Registry{
		tools:      make(map[string]*Tool, len(tools)),
		byCategory: make(map[string][]string),
	}

	for i := range tools {
		t := tools[i]
		if t.ID == "" {
			return nil, fmt.Errorf("tool #%d: missing id", i)
		}
		if _, dup := r.tools[t.ID]; dup {
			return nil, fmt.Errorf("tool %q: duplicate id", t.ID)
		}
		if t.BaseScore < 0 || t.BaseScore > 100 {
			return nil, fmt.Errorf("tool %q: base score %d outside 0..100", t.ID, t.BaseScore)
		}
		if t.Category == "" {
			return nil, fmt.Errorf("tool %q: missing category", t.ID)
		}
		if t.Name == "" {
			t.Name = t.ID
		}

		t.affinity = toSet(t.Affinities)
		t.friction = toSet(t.Frictions)
		r.tools[t.ID] = &t
		r.ids = append(r.ids, t.ID)
		r.byCategory[t.Category] = append(r.byCategory[t.Category], t.ID)
	}

	sort.Strings(r.ids)
	for cat, ids := range r.byCategory {
		sort.Strings(ids)
		r.categories = append(r.categories, cat)
	}
	sort.Strings(r.categories)

	return r, nil
}

// Load decodes a TOML catalog.
func Load(rd io.Reader) (*Registry, error) {
	var file catalogFile
	if _, err := toml.NewDecoder(rd).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(file.Tools)
}

// LoadFile decodes the TOML catalog at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in catalog.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(builtinCatalog))
}

// Lookup returns the tool with the given id.
func (r *Registry) Lookup(id string) (*Tool, bool) {
	if r == nil || id == "" {
		return nil, false
	}
	t, ok := r.tools[id]
	return t, ok
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Tools returns every tool ordered by id.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.tools[id])
	}
	return out
}

// ByCategory returns the tools of a category ordered by id.
func (r *Registry) ByCategory(category string) []*Tool {
	ids := r.byCategory[category]
	out := make([]*Tool, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tools[id])
	}
	return out
}

// Categories returns all categories in sorted order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

// Friction reports whether either tool declares friction toward the other.
func Friction(a, b *Tool) bool {
	if a == nil || b == nil {
		return false
	}
	return a.friction[b.ID] || b.friction[a.ID]
}

// Affinity reports whether either tool declares affinity toward the other.
func Affinity(a, b *Tool) bool {
	if a == nil || b == nil {
		return false
	}
	return a.affinity[b.ID] || b.affinity[a.ID]
}

// FrictionNote returns the explanation recorded for a friction pair, checking
// both directions. Empty when none was recorded.
func FrictionNote(a, b *Tool) string {
	if a == nil || b == nil {
		return ""
	}
	if note := a.FrictionNotes[b.ID]; note != "" {
		return note
	}
	return b.FrictionNotes[a.ID]
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
