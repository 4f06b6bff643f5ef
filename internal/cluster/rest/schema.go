package rest

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lockplane/cfplane/internal/cluster"
)

// The gateway flattens attributes into the table and family objects next to
// "name"; families live under "ColumnSchema".
const (
	keyName         = "name"
	keyColumnSchema = "ColumnSchema"
)

func encodeSchema(name string, desc *cluster.Descriptor) ([]byte, error) {
	table := make(map[string]any, len(desc.Attributes)+2)
	for k, v := range desc.Attributes {
		table[k] = v
	}
	table[keyName] = name

	families := make([]map[string]string, 0, len(desc.Families))
	for _, f := range desc.Families {
		family := make(map[string]string, len(f.Attributes)+1)
		for k, v := range f.Attributes {
			family[k] = v
		}
		family[keyName] = f.Name
		families = append(families, family)
	}
	table[keyColumnSchema] = families

	return json.Marshal(table)
}

func decodeSchema(name string, body map[string]json.RawMessage) (*cluster.Descriptor, error) {
	desc := &cluster.Descriptor{Name: name, Attributes: map[string]string{}}

	for k, raw := range body {
		switch k {
		case keyName:
			continue
		case keyColumnSchema:
			var families []map[string]json.RawMessage
			if err := json.Unmarshal(raw, &families); err != nil {
				return nil, fmt.Errorf("ColumnSchema: %w", err)
			}
			for _, f := range families {
				fd := cluster.FamilyDescriptor{Attributes: map[string]string{}}
				for fk, fraw := range f {
					v, err := scalar(fraw)
					if err != nil {
						return nil, fmt.Errorf("family attribute %s: %w", fk, err)
					}
					if fk == keyName {
						fd.Name = v
						continue
					}
					fd.Attributes[fk] = v
				}
				desc.Families = append(desc.Families, fd)
			}
		default:
			v, err := scalar(raw)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", k, err)
			}
			desc.Attributes[k] = v
		}
	}
	return desc, nil
}

// scalar renders a JSON scalar the way the gateway reports attributes:
// strings as-is, numbers and booleans in their literal form.
func scalar(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("unsupported value %s", string(raw))
}
