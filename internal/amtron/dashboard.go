package amtron

import "encoding/json"

// document is the dashboard payload served by the charger's web interface.
// Field values are either plain strings or nested tables with rows whose
// display value sits in the "c2" column; both shapes occur in the same
// payload, so values are kept raw until a specific field is extracted.
type document struct {
	Groups []group `json:"groups"`
}

type group struct {
	Key    string  `json:"key"`
	Fields []field `json:"fields"`
}

type field struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type table struct {
	Items []item `json:"items"`
}

type item struct {
	Key string `json:"key"`
	C2  string `json:"c2"`
}

// text returns the field value as a plain string, if it is one.
func (f field) text() (string, bool) {
	var s string
	if err := json.Unmarshal(f.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// items returns the rows of a nested table value, if it is one.
func (f field) items() ([]item, bool) {
	var t table
	if err := json.Unmarshal(f.Value, &t); err != nil || t.Items == nil {
		return nil, false
	}
	return t.Items, true
}

// fieldText looks up a plain string field by group and field key.
func (d *document) fieldText(groupKey, fieldKey string) (string, bool) {
	f, ok := d.field(groupKey, fieldKey)
	if !ok {
		return "", false
	}
	return f.text()
}

// itemC2 looks up the display column of a nested table row.
func (d *document) itemC2(groupKey, fieldKey, itemKey string) (string, bool) {
	f, ok := d.field(groupKey, fieldKey)
	if !ok {
		return "", false
	}
	items, ok := f.items()
	if !ok {
		return "", false
	}
	for _, it := range items {
		if it.Key == itemKey {
			return it.C2, true
		}
	}
	return "", false
}

func (d *document) field(groupKey, fieldKey string) (field, bool) {
	for _, g := range d.Groups {
		if g.Key != groupKey {
			continue
		}
		for _, f := range g.Fields {
			if f.Key == fieldKey {
				return f, true
			}
		}
	}
	return field{}, false
}
