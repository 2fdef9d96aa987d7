package index

import "time"

// Document is a searchable record: a stable id, free-form named fields,
// and the typed metadata the query filters run against. Which fields are
// indexed is decided by the caller at build time.
type Document struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	Specialty string         `json:"specialty,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Date      time.Time      `json:"date,omitzero"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// FieldValues returns the string values carried by the named field. A
// designated field may name one of the typed metadata fields ("type",
// "specialty", "tags") or an entry in Fields holding a string, []string,
// or []any of strings. A missing field yields nil, not an error.
func (d Document) FieldValues(name string) []string {
	switch name {
	case "type":
		if d.Type == "" {
			return nil
		}
		return []string{d.Type}
	case "specialty":
		if d.Specialty == "" {
			return nil
		}
		return []string{d.Specialty}
	case "tags":
		return d.Tags
	}
	raw, ok := d.Fields[name]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		return values
	default:
		return nil
	}
}

// HasTag reports whether the document carries the given tag.
func (d Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
