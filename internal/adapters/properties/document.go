// Package properties reads and writes the per-instance server.properties
// document: flat key=value pairs, one per line. Line order, comments, and
// keys this service does not recognize all survive a round trip, so a
// partial update from the panel never destroys settings an operator added
// by hand.
package properties

import "strings"

type entryKind int

const (
	kindPair entryKind = iota
	kindOpaque
)

// entry is one line of the document. Opaque entries (comments, blank lines,
// lines without '=') are preserved byte for byte.
type entry struct {
	kind  entryKind
	key   string
	value string
	raw   string
}

// Document is the ordered per-instance configuration document.
type Document struct {
	entries []entry
}

// ParseDocument parses the flat key=value text. It never fails: anything it
// cannot interpret is kept as an opaque line.
func ParseDocument(text string) *Document {
	doc := &Document{}
	if text == "" {
		return doc
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			doc.entries = append(doc.entries, entry{kind: kindOpaque, raw: line})
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) == "" {
			doc.entries = append(doc.entries, entry{kind: kindOpaque, raw: line})
			continue
		}
		doc.entries = append(doc.entries, entry{kind: kindPair, key: strings.TrimSpace(key), value: value})
	}
	return doc
}

// Get returns the value for key and whether it is present.
func (d *Document) Get(key string) (string, bool) {
	for _, e := range d.entries {
		if e.kind == kindPair && e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Set overwrites the value for key in place, or appends the pair if absent.
func (d *Document) Set(key, value string) {
	for i, e := range d.entries {
		if e.kind == kindPair && e.key == key {
			d.entries[i].value = value
			return
		}
	}
	d.entries = append(d.entries, entry{kind: kindPair, key: key, value: value})
}

// Pairs returns the recognized key=value pairs in document order.
func (d *Document) Pairs() map[string]string {
	pairs := make(map[string]string)
	for _, e := range d.entries {
		if e.kind == kindPair {
			pairs[e.key] = e.value
		}
	}
	return pairs
}

// String renders the document back to its on-disk form.
func (d *Document) String() string {
	var b strings.Builder
	for _, e := range d.entries {
		if e.kind == kindOpaque {
			b.WriteString(e.raw)
		} else {
			b.WriteString(e.key)
			b.WriteByte('=')
			b.WriteString(e.value)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
