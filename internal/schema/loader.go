package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed declaration.schema.json
var declarationSchema []byte

// LoadSchema loads table declarations from a YAML file, or from every
// .yaml/.yml file directly inside a directory. The combined set is
// validated before it is returned.
func LoadSchema(path string) ([]Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access schema path %s: %w", path, err)
	}

	var tables []Table
	if info.IsDir() {
		tables, err = loadSchemaFromDir(path)
	} else {
		if !isYAMLFile(path) {
			return nil, fmt.Errorf("schema file %s must have a .yaml or .yml extension", path)
		}
		tables, err = loadSchemaFile(path)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func loadSchemaFromDir(dir string) ([]Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if isYAMLFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yaml files found in directory %s", dir)
	}
	sort.Strings(files)

	var (
		tables []Table
		errs   ConfigurationErrors
	)
	for _, file := range files {
		loaded, err := loadSchemaFile(file)
		if err != nil {
			var cfg ConfigurationErrors
			if errors.As(err, &cfg) {
				errs = append(errs, cfg...)
				continue
			}
			return nil, err
		}
		tables = append(tables, loaded...)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

func loadSchemaFile(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return LoadSchemaFromBytes(data, path)
}

// LoadSchemaFromBytes parses one declaration document. The document is
// checked against the embedded JSON Schema first so that unknown keys and
// bad enum values are reported with their path. Cross-table rules are not
// applied; see Validate.
func LoadSchemaFromBytes(data []byte, source string) ([]Table, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ConfigurationErrors{{Source: source, Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}
	if doc == nil {
		return nil, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(declarationSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate %s: %w", source, err)
	}
	if !result.Valid() {
		var errs ConfigurationErrors
		for _, desc := range result.Errors() {
			errs = append(errs, ConfigurationError{
				Source:  source,
				Table:   tableNameAt(doc, desc.Field()),
				Field:   desc.Field(),
				Message: desc.Description(),
			})
		}
		return nil, errs
	}

	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, ConfigurationErrors{{Source: source, Message: err.Error()}}
	}

	for i := range file.Tables {
		file.Tables[i].Source = source
	}
	return file.Tables, nil
}

// tableNameAt resolves the table name for a JSON Schema error path such as
// "tables.2.columnFamilies.0.bloomFilter".
func tableNameAt(doc interface{}, field string) string {
	parts := strings.Split(field, ".")
	if len(parts) < 2 || parts[0] != "tables" {
		return ""
	}
	root, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}
	list, ok := root["tables"].([]interface{})
	if !ok {
		return ""
	}
	var idx int
	if _, err := fmt.Sscanf(parts[1], "%d", &idx); err != nil || idx < 0 || idx >= len(list) {
		return ""
	}
	table, ok := list[idx].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := table["name"].(string)
	return name
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
