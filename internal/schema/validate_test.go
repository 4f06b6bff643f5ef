package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedDeclarations(t *testing.T) {
	tables := []Table{
		fingerprintFixture(),
		{Name: "dropMe", Intent: IntentDrop},
		{Name: "ignoreMe", Intent: IntentIgnore},
	}
	if err := Validate(tables); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	tables := []Table{
		{Name: "a", Families: []Family{{Name: "f"}, {Name: "f"}}},
		{Name: "a", Families: []Family{{Name: "f"}}},
		{Name: "b"},
		{Name: "c", Intent: "rename", Families: []Family{{Name: "f"}}},
		{
			Name: "d",
			Families: []Family{{
				Name: "f",
				FamilyAttributes: FamilyAttributes{
					BlockSizeKB:      Size(0.3),
					ReplicationScope: Int(2),
					MaxVersions:      Int(0),
					BloomFilter:      String("SOMETIMES"),
				},
			}},
		},
	}

	err := Validate(tables)
	var cfg ConfigurationErrors
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationErrors, got %v", err)
	}

	wants := []string{
		"table a, family f, name: duplicate column family name",
		"table a, name: duplicate table name",
		"table b, columnFamilies: at least one column family is required",
		`table c, intent: unknown intent "rename"`,
		"table d, family f, replicationScope: must be 0 or 1",
		"table d, family f, maxVersions: must be greater than zero",
		"table d, family f, bloomFilter: must be one of NONE, ROW, ROWCOL",
		"table d, family f, blockSizeKB: 0.3KB is not a whole number of bytes",
	}
	msg := err.Error()
	for _, want := range wants {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in:\n%s", want, msg)
		}
	}
	if len(cfg) != len(wants) {
		t.Errorf("expected %d errors, got %d:\n%s", len(wants), len(cfg), msg)
	}
}

func TestValidateDropNeedsNoFamilies(t *testing.T) {
	if err := Validate([]Table{{Name: "gone", Intent: IntentDrop}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsOverflowingSize(t *testing.T) {
	err := Validate([]Table{{
		Name:            "huge",
		Families:        []Family{{Name: "f"}},
		TableAttributes: TableAttributes{MaxFileSizeMB: Size(8796093022208)},
	}})
	var errs ConfigurationErrors
	if !errors.As(err, &errs) || len(errs) != 1 {
		t.Fatalf("expected one configuration error, got %v", err)
	}
	if errs[0].Field != "maxFileSizeMB" || !strings.Contains(errs[0].Message, "out of range") {
		t.Errorf("unexpected error %+v", errs[0])
	}
}
