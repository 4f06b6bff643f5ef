// Package schematest provides declaration fixtures shared by the planner,
// validation and executor tests.
package schematest

import "github.com/lockplane/cfplane/internal/schema"

// Table returns a fully declared table with two key parts and a single
// family named <name>ColumnFamily1.
func Table(name string) schema.Table {
	return schema.Table{
		Name: name,
		Key: []schema.KeyPart{
			{Name: name + "KeyPart1", Type: "String", Length: 15},
			{Name: name + "KeyPart2", Type: "Timestamp", Length: 15, Inverted: true},
		},
		TableAttributes: schema.TableAttributes{
			DeferredLogFlush:    schema.Bool(false),
			MaxFileSizeMB:       schema.Size(256),
			MemStoreFlushSizeMB: schema.Size(64),
			Owner:               schema.String("ivarley"),
			ReadOnly:            schema.Bool(false),
		},
		Families: []schema.Family{
			{
				Name: name + "ColumnFamily1",
				Columns: []schema.Column{
					{Name: name + "Column1", Type: "String"},
					{Name: name + "Column2", Type: "Timestamp"},
					{Name: name + "Column3", Type: "Byte"},
				},
				FamilyAttributes: schema.FamilyAttributes{
					BlockCache:       schema.Bool(true),
					BlockSizeKB:      schema.Size(64),
					BloomFilter:      schema.String("NONE"),
					InMemory:         schema.Bool(false),
					MaxVersions:      schema.Int(3),
					ReplicationScope: schema.Int(0),
					TTLSeconds:       schema.Forever(),
				},
			},
		},
	}
}

// AlteredTable returns Table(name) with the max file size and block size
// bumped by one unit and the owner changed to ivarley2.
func AlteredTable(name string) schema.Table {
	t := Table(name)
	t.MaxFileSizeMB = schema.Size(257)
	t.Owner = schema.String("ivarley2")
	t.Families[0].BlockSizeKB = schema.Size(65)
	return t
}

// WithIntent returns t with its intent replaced.
func WithIntent(t schema.Table, intent schema.Intent) schema.Table {
	t.Intent = intent
	return t
}

// Effective defaults t and panics on error. Fixtures are always valid.
func Effective(t schema.Table) *schema.EffectiveTable {
	eff, err := schema.Effective(t)
	if err != nil {
		panic(err)
	}
	return eff
}
