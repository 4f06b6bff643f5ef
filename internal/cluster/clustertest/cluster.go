// Package clustertest provides an in-memory cluster.Admin for tests and a
// shared suite that checks any Admin implementation against the same rules.
package clustertest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/schema"
)

// Op names an administrative call.
type Op string

const (
	OpList      Op = "list"
	OpExists    Op = "exists"
	OpIsEnabled Op = "isEnabled"
	OpDescribe  Op = "describe"
	OpCreate    Op = "create"
	OpDisable   Op = "disable"
	OpEnable    Op = "enable"
	OpModify    Op = "modify"
	OpDelete    Op = "delete"
)

// Mutating reports whether op changes cluster state.
func (op Op) Mutating() bool {
	switch op {
	case OpCreate, OpDisable, OpEnable, OpModify, OpDelete:
		return true
	}
	return false
}

// Call records one administrative call.
type Call struct {
	Op     Op
	Table  string
	Splits int
}

func (c Call) String() string {
	if c.Table == "" {
		return string(c.Op)
	}
	return fmt.Sprintf("%s(%s)", c.Op, c.Table)
}

type table struct {
	desc    *cluster.Descriptor
	enabled bool
	regions int
}

type failureKey struct {
	op    Op
	table string
}

// Cluster is an in-memory cluster.Admin. It enforces the same availability
// rules as a real cluster: modify and delete need a disabled table.
type Cluster struct {
	mu       sync.Mutex
	tables   map[string]*table
	calls    []Call
	failures map[failureKey]error
}

var _ cluster.Admin = (*Cluster)(nil)

func New() *Cluster {
	return &Cluster{
		tables:   map[string]*table{},
		failures: map[failureKey]error{},
	}
}

// AddTable seeds a table without recording a call.
func (c *Cluster) AddTable(desc *cluster.Descriptor, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[desc.Name] = &table{desc: desc.Clone(), enabled: enabled}
}

// AddEffective seeds an enabled table built from an effective declaration.
func (c *Cluster) AddEffective(t *schema.EffectiveTable) {
	c.AddTable(cluster.NewDescriptor(t), true)
}

// SetAttribute changes an observed attribute in place, simulating a manual
// change made outside the plan. An empty family targets the table.
func (c *Cluster) SetAttribute(tableName, family, name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableName]
	if !ok {
		return
	}
	if family == "" {
		t.desc.Attributes[name] = value
		return
	}
	if f := t.desc.Family(family); f != nil {
		f.Attributes[name] = value
	}
}

// FailOn makes the next and every later op against tableName return err.
func (c *Cluster) FailOn(op Op, tableName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[failureKey{op, tableName}] = err
}

// Calls returns every recorded call in order.
func (c *Cluster) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Mutations returns only the recorded calls that change state.
func (c *Cluster) Mutations() []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Op.Mutating() {
			out = append(out, call)
		}
	}
	return out
}

// Reset clears the call log.
func (c *Cluster) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Regions returns the pre-split count a table was created with.
func (c *Cluster) Regions(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[name]; ok {
		return t.regions
	}
	return 0
}

func (c *Cluster) record(op Op, name string, splits int) error {
	c.calls = append(c.calls, Call{Op: op, Table: name, Splits: splits})
	return c.failures[failureKey{op, name}]
}

func (c *Cluster) ListTables(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpList, "", 0); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Cluster) Exists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpExists, name, 0); err != nil {
		return false, err
	}
	_, ok := c.tables[name]
	return ok, nil
}

func (c *Cluster) IsEnabled(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpIsEnabled, name, 0); err != nil {
		return false, err
	}
	t, ok := c.tables[name]
	if !ok {
		return false, fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	return t.enabled, nil
}

func (c *Cluster) Describe(ctx context.Context, name string) (cluster.TableState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpDescribe, name, 0); err != nil {
		return cluster.TableState{}, err
	}
	t, ok := c.tables[name]
	if !ok {
		return cluster.TableState{Name: name}, nil
	}
	return cluster.TableState{Name: name, Exists: true, Enabled: t.enabled, Descriptor: t.desc.Clone()}, nil
}

func (c *Cluster) CreateTable(ctx context.Context, desc *cluster.Descriptor, splits int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpCreate, desc.Name, splits); err != nil {
		return err
	}
	if _, ok := c.tables[desc.Name]; ok {
		return fmt.Errorf("%s: %w", desc.Name, cluster.ErrTableExists)
	}
	c.tables[desc.Name] = &table{desc: desc.Clone(), enabled: true, regions: splits}
	return nil
}

func (c *Cluster) DisableTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpDisable, name, 0); err != nil {
		return err
	}
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	if !t.enabled {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableDisabled)
	}
	t.enabled = false
	return nil
}

func (c *Cluster) EnableTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpEnable, name, 0); err != nil {
		return err
	}
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	if t.enabled {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableEnabled)
	}
	t.enabled = true
	return nil
}

func (c *Cluster) ModifyTable(ctx context.Context, name string, desc *cluster.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpModify, name, 0); err != nil {
		return err
	}
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	if t.enabled {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableEnabled)
	}
	t.desc = desc.Clone()
	t.desc.Name = name
	return nil
}

func (c *Cluster) DeleteTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpDelete, name, 0); err != nil {
		return err
	}
	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	if t.enabled {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableEnabled)
	}
	delete(c.tables, name)
	return nil
}

func (c *Cluster) Close() error { return nil }
