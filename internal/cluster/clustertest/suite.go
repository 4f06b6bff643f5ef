package clustertest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/schema/schematest"
)

// RunAdminSuite checks that an Admin implementation honors the availability
// rules the executor relies on. open must return an empty cluster.
func RunAdminSuite(t *testing.T, open func(t *testing.T) cluster.Admin) {
	t.Helper()
	ctx := context.Background()

	t.Run("describe missing table", func(t *testing.T) {
		admin := open(t)
		state, err := admin.Describe(ctx, "nope")
		if err != nil {
			t.Fatalf("Describe returned error: %v", err)
		}
		if state.Exists {
			t.Fatal("expected missing table to report Exists=false")
		}
		exists, err := admin.Exists(ctx, "nope")
		if err != nil || exists {
			t.Fatalf("Exists = %v, %v; want false, nil", exists, err)
		}
	})

	t.Run("create round trip", func(t *testing.T) {
		admin := open(t)
		want := cluster.NewDescriptor(schematest.Effective(schematest.Table("createMe")))
		if err := admin.CreateTable(ctx, want, 0); err != nil {
			t.Fatalf("CreateTable returned error: %v", err)
		}

		state, err := admin.Describe(ctx, "createMe")
		if err != nil {
			t.Fatalf("Describe returned error: %v", err)
		}
		if !state.Exists || !state.Enabled {
			t.Fatalf("expected an enabled table, got %+v", state)
		}
		if !reflect.DeepEqual(state.Descriptor.Attributes, want.Attributes) {
			t.Errorf("table attributes mismatch:\n got %v\nwant %v", state.Descriptor.Attributes, want.Attributes)
		}
		if len(state.Descriptor.Families) != 1 {
			t.Fatalf("expected 1 family, got %d", len(state.Descriptor.Families))
		}
		if !reflect.DeepEqual(state.Descriptor.Families[0], want.Families[0]) {
			t.Errorf("family mismatch:\n got %+v\nwant %+v", state.Descriptor.Families[0], want.Families[0])
		}

		if err := admin.CreateTable(ctx, want, 0); !errors.Is(err, cluster.ErrTableExists) {
			t.Errorf("expected ErrTableExists creating twice, got %v", err)
		}
	})

	t.Run("list tables sorted", func(t *testing.T) {
		admin := open(t)
		for _, name := range []string{"b", "a", "c"} {
			desc := cluster.NewDescriptor(schematest.Effective(schematest.Table(name)))
			if err := admin.CreateTable(ctx, desc, 0); err != nil {
				t.Fatalf("CreateTable(%s) returned error: %v", name, err)
			}
		}
		names, err := admin.ListTables(ctx)
		if err != nil {
			t.Fatalf("ListTables returned error: %v", err)
		}
		if !reflect.DeepEqual(names, []string{"a", "b", "c"}) {
			t.Errorf("ListTables = %v", names)
		}
	})

	t.Run("modify requires disabled table", func(t *testing.T) {
		admin := open(t)
		desc := cluster.NewDescriptor(schematest.Effective(schematest.Table("alterMe")))
		if err := admin.CreateTable(ctx, desc, 0); err != nil {
			t.Fatalf("CreateTable returned error: %v", err)
		}

		target := desc.Clone()
		target.Apply(schematest.Effective(schematest.AlteredTable("alterMe")))
		if err := admin.ModifyTable(ctx, "alterMe", target); !errors.Is(err, cluster.ErrTableEnabled) {
			t.Fatalf("expected ErrTableEnabled modifying an enabled table, got %v", err)
		}

		if err := admin.DisableTable(ctx, "alterMe"); err != nil {
			t.Fatalf("DisableTable returned error: %v", err)
		}
		if enabled, err := admin.IsEnabled(ctx, "alterMe"); err != nil || enabled {
			t.Fatalf("IsEnabled = %v, %v; want false, nil", enabled, err)
		}
		if err := admin.ModifyTable(ctx, "alterMe", target); err != nil {
			t.Fatalf("ModifyTable returned error: %v", err)
		}
		if err := admin.EnableTable(ctx, "alterMe"); err != nil {
			t.Fatalf("EnableTable returned error: %v", err)
		}

		state, err := admin.Describe(ctx, "alterMe")
		if err != nil {
			t.Fatalf("Describe returned error: %v", err)
		}
		if got := state.Descriptor.Attributes["MAX_FILESIZE"]; got != "269484032" {
			t.Errorf("MAX_FILESIZE = %q after modify", got)
		}
		if got, _ := state.FamilyAttribute("alterMeColumnFamily1", "BLOCKSIZE"); got != "66560" {
			t.Errorf("BLOCKSIZE = %q after modify", got)
		}
	})

	t.Run("delete requires disabled table", func(t *testing.T) {
		admin := open(t)
		desc := cluster.NewDescriptor(schematest.Effective(schematest.Table("dropMe")))
		if err := admin.CreateTable(ctx, desc, 0); err != nil {
			t.Fatalf("CreateTable returned error: %v", err)
		}
		if err := admin.DeleteTable(ctx, "dropMe"); !errors.Is(err, cluster.ErrTableEnabled) {
			t.Fatalf("expected ErrTableEnabled deleting an enabled table, got %v", err)
		}
		if err := admin.DisableTable(ctx, "dropMe"); err != nil {
			t.Fatalf("DisableTable returned error: %v", err)
		}
		if err := admin.DeleteTable(ctx, "dropMe"); err != nil {
			t.Fatalf("DeleteTable returned error: %v", err)
		}
		if exists, _ := admin.Exists(ctx, "dropMe"); exists {
			t.Fatal("table still exists after delete")
		}
		if err := admin.DisableTable(ctx, "dropMe"); !errors.Is(err, cluster.ErrTableNotFound) {
			t.Errorf("expected ErrTableNotFound, got %v", err)
		}
	})
}
