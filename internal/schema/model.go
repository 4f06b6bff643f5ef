package schema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent records what the declaring source wants done with a table.
type Intent string

const (
	IntentCreateOrAlter Intent = "create-or-alter"
	IntentDrop          Intent = "drop"
	IntentIgnore        Intent = "ignore"
)

// Valid reports whether i is one of the known intents. The empty intent is
// treated as create-or-alter.
func (i Intent) Valid() bool {
	switch i {
	case "", IntentCreateOrAlter, IntentDrop, IntentIgnore:
		return true
	}
	return false
}

// Normalize returns the intent with the empty value resolved.
func (i Intent) Normalize() Intent {
	if i == "" {
		return IntentCreateOrAlter
	}
	return i
}

// File is a single declaration document.
type File struct {
	Tables []Table `yaml:"tables"`
}

// Table is a declared table as read from the schema source.
type Table struct {
	Name            string    `yaml:"name"`
	Intent          Intent    `yaml:"intent,omitempty"`
	Key             []KeyPart `yaml:"key,omitempty"`
	Families        []Family  `yaml:"columnFamilies,omitempty"`
	TableAttributes `yaml:",inline"`

	// Source is the file the table was loaded from, if any.
	Source string `yaml:"-"`
}

// KeyPart is one component of a composite row key.
type KeyPart struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Length   int    `yaml:"length,omitempty"`
	Inverted bool   `yaml:"inverted,omitempty"`
}

// Column documents a qualifier stored in a family. The store has no notion
// of columns; they only contribute to the fingerprint.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Family is a declared column family.
type Family struct {
	Name             string   `yaml:"name"`
	Columns          []Column `yaml:"columns,omitempty"`
	FamilyAttributes `yaml:",inline"`
}

// TableAttributes holds table level overrides. A nil field was not declared.
type TableAttributes struct {
	DeferredLogFlush    *bool    `yaml:"deferredLogFlush,omitempty"`
	IsMeta              *bool    `yaml:"isMeta,omitempty"`
	IsRoot              *bool    `yaml:"isRoot,omitempty"`
	MaxFileSizeMB       *float64 `yaml:"maxFileSizeMB,omitempty"`
	MemStoreFlushSizeMB *float64 `yaml:"memStoreFlushSizeMB,omitempty"`
	Owner               *string  `yaml:"owner,omitempty"`
	PreSplitRegions     *int     `yaml:"preSplitRegions,omitempty"`
	ReadOnly            *bool    `yaml:"readOnly,omitempty"`
}

// FamilyAttributes holds family level overrides. A nil field was not declared.
type FamilyAttributes struct {
	BlockCache        *bool    `yaml:"blockCache,omitempty"`
	BlockSizeKB       *float64 `yaml:"blockSizeKB,omitempty"`
	BloomFilter       *string  `yaml:"bloomFilter,omitempty"`
	Compression       *string  `yaml:"compression,omitempty"`
	DataBlockEncoding *string  `yaml:"dataBlockEncoding,omitempty"`
	EncodeOnDisk      *bool    `yaml:"encodeOnDisk,omitempty"`
	InMemory          *bool    `yaml:"inMemory,omitempty"`
	KeepDeletedCells  *bool    `yaml:"keepDeletedCells,omitempty"`
	MaxVersions       *int     `yaml:"maxVersions,omitempty"`
	MinVersions       *int     `yaml:"minVersions,omitempty"`
	ReplicationScope  *int     `yaml:"replicationScope,omitempty"`
	TTLSeconds        *TTL     `yaml:"ttlSeconds,omitempty"`
}

// TTLForever is the sentinel the store uses for cells that never expire.
const TTLForever = 2147483647

// TTL is a time to live in seconds. It decodes from an integer or from the
// string "forever".
type TTL struct {
	Seconds int64
	Forever bool
}

// Value returns the TTL in seconds with the forever sentinel resolved.
func (t TTL) Value() int64 {
	if t.Forever {
		return TTLForever
	}
	return t.Seconds
}

func (t TTL) String() string {
	if t.Forever {
		return "forever"
	}
	return strconv.FormatInt(t.Seconds, 10)
}

func (t *TTL) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: ttlSeconds must be an integer or \"forever\"", value.Line)
	}
	if strings.EqualFold(value.Value, "forever") {
		*t = TTL{Forever: true}
		return nil
	}
	n, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: ttlSeconds must be an integer or \"forever\", got %q", value.Line, value.Value)
	}
	*t = TTL{Seconds: n}
	return nil
}

// Bool returns a pointer to v. Bool, Int, Size and String build
// declarations in code.
func Bool(v bool) *bool {
	return &v
}

func Int(v int) *int {
	return &v
}

func Size(v float64) *float64 {
	return &v
}

func String(v string) *string {
	return &v
}

// Seconds returns a TTL of n seconds.
func Seconds(n int64) *TTL {
	return &TTL{Seconds: n}
}

// Forever returns the TTL that never expires.
func Forever() *TTL {
	return &TTL{Forever: true}
}
