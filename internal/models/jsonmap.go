package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lazygophers/ccmem/internal/core/memory"
)

// JSONMap is a JSON object stored as TEXT.
type JSONMap map[string]any

// Value encodes the map, storing a nil map as "{}".
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

// Scan decodes a stored object. NULL, empty and malformed text scan to an
// empty map.
func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}

	out := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			out = JSONMap{}
		}
	}
	*m = out
	return nil
}

// Merge returns a copy of m with patch applied on top: new keys are added,
// existing keys overwritten and untouched keys kept.
func (m JSONMap) Merge(patch map[string]any) JSONMap {
	return JSONMap(memory.MergeMetadata(m, patch))
}
