package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Well-known entry fields.
const (
	FieldInstall = "install"
	FieldUpdate  = "update"
	FieldVersion = "version"
	FieldSHA256  = "sha256"
)

// emptyDocument is the content of a manifest without entries.
const emptyDocument = "{}"

// pathEscaper escapes characters that have a meaning in gjson/sjson paths.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// errNotAnObject is returned when a document is valid JSON but not an object.
var errNotAnObject = errors.New("manifest must be a JSON object")

// Entry is the metadata record stored under a build id.
type Entry map[string]any

// NewEntry returns an entry pre-filled with free-form fields.
func NewEntry(fields map[string]string) Entry {
	entry := make(Entry, len(fields)+3)
	for key, value := range fields {
		entry[key] = value
	}

	return entry
}

// String returns the string value of a field or "" when it is absent or not a string.
func (e Entry) String(field string) string {
	value, _ := e[field].(string)

	return value
}

// Manifest is an immutable JSON object keyed by version-less build id.
type Manifest struct {
	raw []byte
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{raw: []byte(emptyDocument)}
}

// Parse validates data and wraps it into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return New(), nil
	}

	if !gjson.ValidBytes(trimmed) {
		return nil, errors.New("manifest is not valid JSON")
	}

	if !gjson.ParseBytes(trimmed).IsObject() {
		return nil, errNotAnObject
	}

	return &Manifest{raw: bytes.Clone(trimmed)}, nil
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	count := 0

	gjson.ParseBytes(m.raw).ForEach(func(_, _ gjson.Result) bool {
		count++

		return true
	})

	return count
}

// IDs returns entry keys in document order.
func (m *Manifest) IDs() []string {
	var ids []string

	gjson.ParseBytes(m.raw).ForEach(func(key, _ gjson.Result) bool {
		ids = append(ids, key.String())

		return true
	})

	return ids
}

// Has reports whether an entry exists for id.
func (m *Manifest) Has(id string) bool {
	return gjson.GetBytes(m.raw, escapePath(id)).Exists()
}

// Version returns the version stored in the entry for id.
func (m *Manifest) Version(id string) string {
	return gjson.GetBytes(m.raw, escapePath(id)+"."+FieldVersion).String()
}

// Entry decodes the entry stored under id.
func (m *Manifest) Entry(id string) (Entry, bool) {
	result := gjson.GetBytes(m.raw, escapePath(id))
	if !result.Exists() || !result.IsObject() {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(result.Raw), &entry); err != nil {
		return nil, false
	}

	return entry, true
}

// With returns a copy of the manifest where id maps to entry.
func (m *Manifest) With(id string, entry Entry) (*Manifest, error) {
	updated, err := sjson.SetBytes(bytes.Clone(m.raw), escapePath(id), entry)
	if err != nil {
		return nil, fmt.Errorf("set manifest entry %s: %w", id, err)
	}

	return &Manifest{raw: updated}, nil
}

// Without returns a copy of the manifest with the entry for id removed.
func (m *Manifest) Without(id string) (*Manifest, error) {
	if !m.Has(id) {
		return m, nil
	}

	updated, err := sjson.DeleteBytes(bytes.Clone(m.raw), escapePath(id))
	if err != nil {
		return nil, fmt.Errorf("delete manifest entry %s: %w", id, err)
	}

	return &Manifest{raw: updated}, nil
}

// StringValues returns every string stored directly in an entry, entries in document order.
func (m *Manifest) StringValues() []string {
	var values []string

	gjson.ParseBytes(m.raw).ForEach(func(_, section gjson.Result) bool {
		if !section.IsObject() {
			return true
		}

		section.ForEach(func(_, value gjson.Result) bool {
			if value.Type == gjson.String {
				values = append(values, value.String())
			}

			return true
		})

		return true
	})

	return values
}

// Bytes returns the manifest indented with two spaces.
func (m *Manifest) Bytes() []byte {
	return pretty.PrettyOptions(m.raw, &pretty.Options{
		Width:  80,
		Indent: "  ",
	})
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return bytes.Clone(m.raw), nil
}

// escapePath turns a literal key into a gjson/sjson path component.
func escapePath(key string) string {
	return pathEscaper.Replace(key)
}
