package schema

import (
	"strings"
	"testing"
)

func fingerprintFixture() Table {
	return Table{
		Name: "alterMe",
		Key: []KeyPart{
			{Name: "alterMeKeyPart1", Type: "String", Length: 15},
			{Name: "alterMeKeyPart2", Type: "Timestamp", Length: 15, Inverted: true},
		},
		TableAttributes: TableAttributes{
			DeferredLogFlush:    Bool(false),
			MaxFileSizeMB:       Size(256),
			MemStoreFlushSizeMB: Size(64),
			Owner:               String("ivarley"),
			ReadOnly:            Bool(false),
		},
		Families: []Family{{
			Name: "alterMeColumnFamily1",
			Columns: []Column{
				{Name: "alterMeColumn1", Type: "String"},
				{Name: "alterMeColumn2", Type: "Timestamp"},
				{Name: "alterMeColumn3", Type: "Byte"},
			},
			FamilyAttributes: FamilyAttributes{
				BlockCache:       Bool(true),
				BlockSizeKB:      Size(64),
				BloomFilter:      String("NONE"),
				InMemory:         Bool(false),
				MaxVersions:      Int(3),
				ReplicationScope: Int(0),
				TTLSeconds:       Forever(),
			},
		}},
	}
}

func TestFingerprintFormat(t *testing.T) {
	want := `<table deferredLogFlush="false" maxFileSizeMB="256" memStoreFlushSizeMB="64" name="alterMe" owner="ivarley" readOnly="false">` +
		`<key><keyPart inverted="false" length="15" name="alterMeKeyPart1" type="String"/>` +
		`<keyPart inverted="true" length="15" name="alterMeKeyPart2" type="Timestamp"/></key>` +
		`<columnFamilies><columnFamily blockCache="true" blockSizeKB="64" bloomFilter="NONE" inMemory="false" maxVersions="3" name="alterMeColumnFamily1" replicationScope="0" ttlSeconds="forever">` +
		`<column name="alterMeColumn1" type="String"/><column name="alterMeColumn2" type="Timestamp"/><column name="alterMeColumn3" type="Byte"/>` +
		`</columnFamily></columnFamilies></table>`

	if got := Fingerprint(fingerprintFixture()); got != want {
		t.Errorf("fingerprint mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(fingerprintFixture())
	b := Fingerprint(fingerprintFixture())
	if a != b {
		t.Fatalf("identical declarations produced different fingerprints:\n%s\n%s", a, b)
	}
}

func TestFingerprintOnlyDeclaredAttributes(t *testing.T) {
	got := Fingerprint(Table{Name: "bare", Families: []Family{{Name: "f"}}})
	want := `<table name="bare"><key></key><columnFamilies><columnFamily name="f"></columnFamily></columnFamilies></table>`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestFingerprintDetectsStructuralChanges(t *testing.T) {
	base := Fingerprint(fingerprintFixture())

	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"key part inverted", func(tbl *Table) { tbl.Key[0].Inverted = true }},
		{"key part order", func(tbl *Table) { tbl.Key[0], tbl.Key[1] = tbl.Key[1], tbl.Key[0] }},
		{"column added", func(tbl *Table) {
			tbl.Families[0].Columns = append(tbl.Families[0].Columns, Column{Name: "extra", Type: "String"})
		}},
		{"column type", func(tbl *Table) { tbl.Families[0].Columns[2].Type = "Integer" }},
		{"family order", func(tbl *Table) {
			tbl.Families = append([]Family{{Name: "first"}}, tbl.Families...)
		}},
		{"explicit default", func(tbl *Table) { tbl.Families[0].Compression = String("NONE") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := fingerprintFixture()
			tt.mutate(&tbl)
			if Fingerprint(tbl) == base {
				t.Errorf("expected fingerprint to change")
			}
		})
	}
}

func TestFingerprintEscapesValues(t *testing.T) {
	got := Fingerprint(Table{
		Name:            "t",
		TableAttributes: TableAttributes{Owner: String(`a"<b>&c`)},
	})
	if strings.Contains(got, `a"<b>`) {
		t.Errorf("owner was not escaped: %s", got)
	}
}
