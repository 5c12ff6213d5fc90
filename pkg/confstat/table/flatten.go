package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten turns decoded JSON records into a table. Nested objects become
// dotted column names ("content.keywords.value"); arrays are stored as
// JSON text; null becomes an empty cell. Columns appear in first-seen
// order, with the keys of each object visited in sorted order.
func Flatten(records []map[string]any) (*Table, error) {
	var columns []string
	seen := make(map[string]bool)
	flat := make([]map[string]string, 0, len(records))

	for i, rec := range records {
		cells := make(map[string]string)
		if err := flattenInto(cells, "", rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		keys := make([]string, 0, len(cells))
		for k := range cells {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		flat = append(flat, cells)
	}

	t, err := New(columns)
	if err != nil {
		return nil, err
	}
	for _, cells := range flat {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = cells[c]
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func flattenInto(dst map[string]string, prefix string, obj map[string]any) error {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			if err := flattenInto(dst, name, nested); err != nil {
				return err
			}
			continue
		}
		cell, err := formatCell(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		dst[name] = cell
	}
	return nil
}

func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
