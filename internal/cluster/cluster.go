// Package cluster defines the administrative interface to a column-family
// store and the store-native table descriptor it exchanges.
package cluster

import (
	"context"
	"errors"
	"sort"

	"github.com/lockplane/cfplane/internal/schema"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
	ErrTableEnabled  = errors.New("table is enabled")
	ErrTableDisabled = errors.New("table is already disabled")
)

// Admin is the set of administrative calls the planner and executor need.
// Every call blocks until the cluster answers.
type Admin interface {
	ListTables(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	IsEnabled(ctx context.Context, name string) (bool, error)
	// Describe returns a fresh snapshot. A missing table is reported with
	// Exists=false, not as an error.
	Describe(ctx context.Context, name string) (TableState, error)
	// CreateTable creates desc. When splits > 0 the table is pre-split
	// into that many regions.
	CreateTable(ctx context.Context, desc *Descriptor, splits int) error
	DisableTable(ctx context.Context, name string) error
	EnableTable(ctx context.Context, name string) error
	// ModifyTable replaces the descriptor of a disabled table.
	ModifyTable(ctx context.Context, name string, desc *Descriptor) error
	// DeleteTable removes a disabled table.
	DeleteTable(ctx context.Context, name string) error
	Close() error
}

// Descriptor is the store-native description of a table.
type Descriptor struct {
	Name       string             `json:"name"`
	Attributes map[string]string  `json:"attributes"`
	Families   []FamilyDescriptor `json:"families"`
}

// FamilyDescriptor is the store-native description of a column family.
type FamilyDescriptor struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

// TableState is an observed snapshot of one table.
type TableState struct {
	Name       string      `json:"name"`
	Exists     bool        `json:"exists"`
	Enabled    bool        `json:"enabled"`
	Descriptor *Descriptor `json:"descriptor,omitempty"`
}

// TableAttribute returns an observed table attribute.
func (s TableState) TableAttribute(name string) (string, bool) {
	if s.Descriptor == nil {
		return "", false
	}
	v, ok := s.Descriptor.Attributes[name]
	return v, ok
}

// FamilyAttribute returns an observed family attribute.
func (s TableState) FamilyAttribute(family, name string) (string, bool) {
	if s.Descriptor == nil {
		return "", false
	}
	f := s.Descriptor.Family(family)
	if f == nil {
		return "", false
	}
	v, ok := f.Attributes[name]
	return v, ok
}

// NewDescriptor builds the descriptor for a table about to be created.
func NewDescriptor(t *schema.EffectiveTable) *Descriptor {
	d := &Descriptor{Name: t.Name, Attributes: map[string]string{}}
	d.Apply(t)
	return d
}

// Apply writes every effective attribute of t onto d, adding families that
// are missing and updating the ones that exist. Attributes and families the
// declaration does not model are left as they are.
func (d *Descriptor) Apply(t *schema.EffectiveTable) {
	if d.Attributes == nil {
		d.Attributes = map[string]string{}
	}
	for _, a := range t.Attributes() {
		d.Attributes[a.Name] = a.Value
	}
	for i := range t.Families {
		ef := &t.Families[i]
		fd := d.Family(ef.Name)
		if fd == nil {
			d.Families = append(d.Families, FamilyDescriptor{Name: ef.Name, Attributes: map[string]string{}})
			fd = &d.Families[len(d.Families)-1]
		}
		if fd.Attributes == nil {
			fd.Attributes = map[string]string{}
		}
		for _, a := range ef.Attributes() {
			fd.Attributes[a.Name] = a.Value
		}
	}
}

// Family looks up a family by name.
func (d *Descriptor) Family(name string) *FamilyDescriptor {
	for i := range d.Families {
		if d.Families[i].Name == name {
			return &d.Families[i]
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := &Descriptor{Name: d.Name, Attributes: copyMap(d.Attributes)}
	for _, f := range d.Families {
		c.Families = append(c.Families, FamilyDescriptor{Name: f.Name, Attributes: copyMap(f.Attributes)})
	}
	return c
}

// SortedKeys returns the keys of an attribute map in name order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
