package schema

import (
	"math"
	"strconv"
)

// Attribute names as the store reports them. Uppercase names sort ahead of
// fullSchema, which keeps the fingerprint last in every ordered listing.
const (
	AttrDeferredLogFlush  = "DEFERRED_LOG_FLUSH"
	AttrIsMeta            = "IS_META"
	AttrIsRoot            = "IS_ROOT"
	AttrMaxFileSize       = "MAX_FILESIZE"
	AttrMemStoreFlushSize = "MEMSTORE_FLUSHSIZE"
	AttrNumRegions        = "NUMREGIONS"
	AttrOwner             = "OWNER"
	AttrReadOnly          = "READONLY"
	AttrFullSchema        = "fullSchema"

	AttrBlockCache        = "BLOCKCACHE"
	AttrBlockSize         = "BLOCKSIZE"
	AttrBloomFilter       = "BLOOMFILTER"
	AttrCompression       = "COMPRESSION"
	AttrDataBlockEncoding = "DATA_BLOCK_ENCODING"
	AttrEncodeOnDisk      = "ENCODE_ON_DISK"
	AttrInMemory          = "IN_MEMORY"
	AttrKeepDeletedCells  = "KEEP_DELETED_CELLS"
	AttrMinVersions       = "MIN_VERSIONS"
	AttrReplicationScope  = "REPLICATION_SCOPE"
	AttrTTL               = "TTL"
	AttrVersions          = "VERSIONS"
)

// Defaults applied to anything a declaration leaves out.
const (
	DefaultMaxFileSize       int64 = 10 * 1024 * 1024 * 1024
	DefaultMemStoreFlushSize int64 = 128 * 1024 * 1024
	DefaultBlockSize         int64 = 64 * 1024
	DefaultBloomFilter             = "NONE"
	DefaultCompression             = "NONE"
	DefaultDataBlockEncoding       = "NONE"
	DefaultMaxVersions             = 3
)

const (
	bytesPerMB = 1024 * 1024
	bytesPerKB = 1024
)

// Attribute is a single materialized name/value pair.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EffectiveTable is a declared table with every attribute defaulted. It is
// the only form that is compared against the cluster.
type EffectiveTable struct {
	Name              string            `json:"name"`
	Intent            Intent            `json:"intent"`
	DeferredLogFlush  bool              `json:"deferredLogFlush"`
	IsMeta            bool              `json:"isMeta"`
	IsRoot            bool              `json:"isRoot"`
	ReadOnly          bool              `json:"readOnly"`
	MaxFileSize       int64             `json:"maxFileSize"`
	MemStoreFlushSize int64             `json:"memStoreFlushSize"`
	Owner             string            `json:"owner,omitempty"`
	PreSplitRegions   int               `json:"preSplitRegions,omitempty"`
	Families          []EffectiveFamily `json:"families"`
	Fingerprint       string            `json:"fullSchema"`
}

// EffectiveFamily is a declared family with every attribute defaulted.
type EffectiveFamily struct {
	Name              string `json:"name"`
	BlockCache        bool   `json:"blockCache"`
	BlockSize         int64  `json:"blockSize"`
	BloomFilter       string `json:"bloomFilter"`
	Compression       string `json:"compression"`
	DataBlockEncoding string `json:"dataBlockEncoding"`
	EncodeOnDisk      bool   `json:"encodeOnDisk"`
	InMemory          bool   `json:"inMemory"`
	KeepDeletedCells  bool   `json:"keepDeletedCells"`
	MinVersions       int    `json:"minVersions"`
	ReplicationScope  int    `json:"replicationScope"`
	TTL               int64  `json:"ttl"`
	MaxVersions       int    `json:"maxVersions"`
}

// Attributes returns the table level attributes in name order, ending with
// the fingerprint. OWNER and NUMREGIONS only appear when declared.
func (t *EffectiveTable) Attributes() []Attribute {
	attrs := []Attribute{
		{AttrDeferredLogFlush, strconv.FormatBool(t.DeferredLogFlush)},
		{AttrIsMeta, strconv.FormatBool(t.IsMeta)},
		{AttrIsRoot, strconv.FormatBool(t.IsRoot)},
		{AttrMaxFileSize, strconv.FormatInt(t.MaxFileSize, 10)},
		{AttrMemStoreFlushSize, strconv.FormatInt(t.MemStoreFlushSize, 10)},
	}
	if t.PreSplitRegions > 0 {
		attrs = append(attrs, Attribute{AttrNumRegions, strconv.Itoa(t.PreSplitRegions)})
	}
	if t.Owner != "" {
		attrs = append(attrs, Attribute{AttrOwner, t.Owner})
	}
	attrs = append(attrs,
		Attribute{AttrReadOnly, strconv.FormatBool(t.ReadOnly)},
		Attribute{AttrFullSchema, t.Fingerprint},
	)
	return attrs
}

// Family looks up a family by name.
func (t *EffectiveTable) Family(name string) (*EffectiveFamily, bool) {
	for i := range t.Families {
		if t.Families[i].Name == name {
			return &t.Families[i], true
		}
	}
	return nil, false
}

// Attributes returns the family attributes in name order.
func (f *EffectiveFamily) Attributes() []Attribute {
	return []Attribute{
		{AttrBlockCache, strconv.FormatBool(f.BlockCache)},
		{AttrBlockSize, strconv.FormatInt(f.BlockSize, 10)},
		{AttrBloomFilter, f.BloomFilter},
		{AttrCompression, f.Compression},
		{AttrDataBlockEncoding, f.DataBlockEncoding},
		{AttrEncodeOnDisk, strconv.FormatBool(f.EncodeOnDisk)},
		{AttrInMemory, strconv.FormatBool(f.InMemory)},
		{AttrKeepDeletedCells, strconv.FormatBool(f.KeepDeletedCells)},
		{AttrMinVersions, strconv.Itoa(f.MinVersions)},
		{AttrReplicationScope, strconv.Itoa(f.ReplicationScope)},
		{AttrTTL, strconv.FormatInt(f.TTL, 10)},
		{AttrVersions, strconv.Itoa(f.MaxVersions)},
	}
}

// Effective materializes every default for t. Unit conversions that do not
// land on a whole number of bytes are reported as ConfigurationErrors.
func Effective(t Table) (*EffectiveTable, error) {
	var errs ConfigurationErrors
	reject := func(family, field, msg string) {
		errs = append(errs, ConfigurationError{Source: t.Source, Table: t.Name, Family: family, Field: field, Message: msg})
	}

	eff := &EffectiveTable{
		Name:              t.Name,
		Intent:            t.Intent.Normalize(),
		DeferredLogFlush:  boolOr(t.DeferredLogFlush, false),
		IsMeta:            boolOr(t.IsMeta, false),
		IsRoot:            boolOr(t.IsRoot, false),
		ReadOnly:          boolOr(t.ReadOnly, false),
		MaxFileSize:       DefaultMaxFileSize,
		MemStoreFlushSize: DefaultMemStoreFlushSize,
		Fingerprint:       Fingerprint(t),
	}
	if t.Owner != nil {
		eff.Owner = *t.Owner
	}
	if t.PreSplitRegions != nil {
		eff.PreSplitRegions = *t.PreSplitRegions
	}
	if t.MaxFileSizeMB != nil {
		b, err := MegabytesToBytes(*t.MaxFileSizeMB)
		if err != nil {
			reject("", "maxFileSizeMB", err.Error())
		}
		eff.MaxFileSize = b
	}
	if t.MemStoreFlushSizeMB != nil {
		b, err := MegabytesToBytes(*t.MemStoreFlushSizeMB)
		if err != nil {
			reject("", "memStoreFlushSizeMB", err.Error())
		}
		eff.MemStoreFlushSize = b
	}

	eff.Families = make([]EffectiveFamily, 0, len(t.Families))
	for _, f := range t.Families {
		ef := EffectiveFamily{
			Name:              f.Name,
			BlockCache:        boolOr(f.BlockCache, true),
			BlockSize:         DefaultBlockSize,
			BloomFilter:       stringOr(f.BloomFilter, DefaultBloomFilter),
			Compression:       stringOr(f.Compression, DefaultCompression),
			DataBlockEncoding: stringOr(f.DataBlockEncoding, DefaultDataBlockEncoding),
			EncodeOnDisk:      boolOr(f.EncodeOnDisk, true),
			InMemory:          boolOr(f.InMemory, false),
			KeepDeletedCells:  boolOr(f.KeepDeletedCells, false),
			MinVersions:       intOr(f.MinVersions, 0),
			ReplicationScope:  intOr(f.ReplicationScope, 0),
			TTL:               TTLForever,
			MaxVersions:       intOr(f.MaxVersions, DefaultMaxVersions),
		}
		if f.BlockSizeKB != nil {
			b, err := KilobytesToBytes(*f.BlockSizeKB)
			if err != nil {
				reject(f.Name, "blockSizeKB", err.Error())
			}
			ef.BlockSize = b
		}
		if f.TTLSeconds != nil {
			ef.TTL = f.TTLSeconds.Value()
		}
		eff.Families = append(eff.Families, ef)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return eff, nil
}

// MegabytesToBytes converts a declared MB size into bytes.
func MegabytesToBytes(mb float64) (int64, error) {
	return toBytes(mb, bytesPerMB, "MB")
}

// KilobytesToBytes converts a declared KB size into bytes.
func KilobytesToBytes(kb float64) (int64, error) {
	return toBytes(kb, bytesPerKB, "KB")
}

// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
func toBytes(v float64, unit int64, suffix string) (int64, error) {
	b := v * float64(unit)
	if math.IsNaN(b) || math.IsInf(b, 0) || b >= math.MaxInt64 || b < math.MinInt64 {
		return 0, &unitError{value: v, suffix: suffix, reason: "is out of range"}
	}
	if b != math.Trunc(b) {
		return 0, &unitError{value: v, suffix: suffix, reason: "is not a whole number of bytes"}
	}
	return int64(b), nil
}

type unitError struct {
	value  float64
	suffix string
	reason string
}

func (e *unitError) Error() string {
	return strconv.FormatFloat(e.value, 'f', -1, 64) + e.suffix + " " + e.reason
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
