package store

import (
	"maps"
	"slices"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/tool"
)

// InMemoryGuidelineStore is a volatile core.GuidelineStore. List returns
// guidelines in creation order.
type InMemoryGuidelineStore struct {
	items *keyed[core.Guideline]
}

var _ core.GuidelineStore = (*InMemoryGuidelineStore)(nil)

// NewInMemoryGuidelineStore constructs a store seeded with guidelines.
// Guidelines without an id get a fresh one.
func NewInMemoryGuidelineStore(guidelines ...core.Guideline) (*InMemoryGuidelineStore, error) {
	s := &InMemoryGuidelineStore{items: newKeyed("guideline", cloneGuideline)}
	for _, g := range guidelines {
		if err := s.Create(g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create stores g. An empty id is replaced by a generated one.
func (s *InMemoryGuidelineStore) Create(g core.Guideline) error {
	if g.ID == "" {
		g.ID = core.NewID()
	}
	return s.items.create(g.ID, g)
}

// Get returns the guideline with id or core.ErrNotFound.
func (s *InMemoryGuidelineStore) Get(id string) (core.Guideline, error) {
	return s.items.get(id)
}

// List returns all guidelines in creation order.
func (s *InMemoryGuidelineStore) List() ([]core.Guideline, error) {
	return s.items.list(), nil
}

func cloneGuideline(g core.Guideline) core.Guideline {
	g.ToolNames = slices.Clone(g.ToolNames)
	return g
}

// InMemoryToolStore is a volatile tool.Store keyed by tool name.
type InMemoryToolStore struct {
	items *keyed[tool.Definition]
}

var _ tool.Store = (*InMemoryToolStore)(nil)

// NewInMemoryToolStore constructs a store seeded with definitions.
func NewInMemoryToolStore(defs ...tool.Definition) (*InMemoryToolStore, error) {
	s := &InMemoryToolStore{items: newKeyed("tool", cloneDefinition)}
	for _, d := range defs {
		if err := s.Create(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create stores d under its name.
func (s *InMemoryToolStore) Create(d tool.Definition) error {
	return s.items.create(d.Name, d)
}

// Get returns the definition named name or core.ErrNotFound.
func (s *InMemoryToolStore) Get(name string) (tool.Definition, error) {
	return s.items.get(name)
}

// List returns all definitions in creation order.
func (s *InMemoryToolStore) List() ([]tool.Definition, error) {
	return s.items.list(), nil
}

// Parameters are treated as immutable once created; only the top-level map
// is copied.
func cloneDefinition(d tool.Definition) tool.Definition {
	d.Parameters = maps.Clone(d.Parameters)
	return d
}
