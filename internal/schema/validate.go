package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	BloomFilterTypes       = []string{"NONE", "ROW", "ROWCOL"}
	CompressionTypes       = []string{"NONE", "GZ", "LZO", "SNAPPY", "LZ4", "ZSTD"}
	DataBlockEncodingTypes = []string{"NONE", "PREFIX", "DIFF", "FAST_DIFF", "PREFIX_TREE"}
)

// Validate checks a full declaration set. Every problem is collected and
// returned together as ConfigurationErrors.
func Validate(tables []Table) error {
	var errs ConfigurationErrors
	seen := make(map[string]string, len(tables))

	for _, t := range tables {
		add := func(family, field, format string, args ...any) {
			errs = append(errs, ConfigurationError{
				Source:  t.Source,
				Table:   t.Name,
				Family:  family,
				Field:   field,
				Message: fmt.Sprintf(format, args...),
			})
		}

		if strings.TrimSpace(t.Name) == "" {
			add("", "name", "table name is required")
		} else if prev, ok := seen[t.Name]; ok {
			if prev != "" && prev != t.Source {
				add("", "name", "duplicate table name (also declared in %s)", prev)
			} else {
				add("", "name", "duplicate table name")
			}
		} else {
			seen[t.Name] = t.Source
		}

		if !t.Intent.Valid() {
			add("", "intent", "unknown intent %q", t.Intent)
		}
		if t.Intent.Normalize() == IntentCreateOrAlter && len(t.Families) == 0 {
			add("", "columnFamilies", "at least one column family is required")
		}

		if t.MaxFileSizeMB != nil && *t.MaxFileSizeMB <= 0 {
			add("", "maxFileSizeMB", "must be greater than zero")
		}
		if t.MemStoreFlushSizeMB != nil && *t.MemStoreFlushSizeMB <= 0 {
			add("", "memStoreFlushSizeMB", "must be greater than zero")
		}
		if t.PreSplitRegions != nil && *t.PreSplitRegions < 0 {
			add("", "preSplitRegions", "must not be negative")
		}

		keyParts := make(map[string]bool, len(t.Key))
		for i, kp := range t.Key {
			field := fmt.Sprintf("key[%d]", i)
			if kp.Name == "" {
				add("", field, "key part name is required")
				continue
			}
			if keyParts[kp.Name] {
				add("", field, "duplicate key part %q", kp.Name)
			}
			keyParts[kp.Name] = true
			if kp.Length < 0 {
				add("", field, "length must not be negative")
			}
		}

		families := make(map[string]bool, len(t.Families))
		for i, f := range t.Families {
			if strings.TrimSpace(f.Name) == "" {
				add("", fmt.Sprintf("columnFamilies[%d]", i), "family name is required")
				continue
			}
			if families[f.Name] {
				add(f.Name, "name", "duplicate column family name")
			}
			families[f.Name] = true

			if f.BlockSizeKB != nil && *f.BlockSizeKB <= 0 {
				add(f.Name, "blockSizeKB", "must be greater than zero")
			}
			if f.BloomFilter != nil && !oneOf(*f.BloomFilter, BloomFilterTypes) {
				add(f.Name, "bloomFilter", "must be one of %s", strings.Join(BloomFilterTypes, ", "))
			}
			if f.Compression != nil && !oneOf(*f.Compression, CompressionTypes) {
				add(f.Name, "compression", "must be one of %s", strings.Join(CompressionTypes, ", "))
			}
			if f.DataBlockEncoding != nil && !oneOf(*f.DataBlockEncoding, DataBlockEncodingTypes) {
				add(f.Name, "dataBlockEncoding", "must be one of %s", strings.Join(DataBlockEncodingTypes, ", "))
			}
			if f.MaxVersions != nil && *f.MaxVersions <= 0 {
				add(f.Name, "maxVersions", "must be greater than zero")
			}
			if f.MinVersions != nil && *f.MinVersions < 0 {
				add(f.Name, "minVersions", "must not be negative")
			}
			if f.ReplicationScope != nil && *f.ReplicationScope != 0 && *f.ReplicationScope != 1 {
				add(f.Name, "replicationScope", "must be 0 or 1")
			}
			if f.TTLSeconds != nil && f.TTLSeconds.Value() <= 0 {
				add(f.Name, "ttlSeconds", "must be greater than zero")
			}
		}

		if _, err := Effective(t); err != nil {
			var cfg ConfigurationErrors
			if errors.As(err, &cfg) {
				errs = append(errs, cfg...)
			} else {
				add("", "", "%v", err)
			}
		}
	}

	return errs.Err()
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
