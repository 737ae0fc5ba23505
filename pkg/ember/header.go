package ember

import (
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// Header is an immutable (name, value) pair with trimmed whitespace. Name
// comparisons are ASCII-case-insensitive but original case is preserved on
// output (spec §3).
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, case-insensitive multimap of Header entries,
// preserving insertion order (spec §3 "Header collection"). Grounded on
// http11/header.go's case-insensitive compare and Set/Add/Del shape,
// generalized from that file's fixed [32]byte inline-array storage (which
// cannot preserve arbitrary-length ordered entries) to a plain slice, and
// enriched with andycostintoma-go-httpx/header.go's canonicalization and
// parameter-parsing idioms.
type Headers struct {
	entries []Header
}

// NewHeaders returns an empty header collection.
func NewHeaders() *Headers {
	return &Headers{}
}

func eqFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Add appends a header, trimming surrounding whitespace from the value.
// Returns ErrInvalidHeader if name is empty or name/value contain bytes
// disallowed in HTTP field syntax.
func (h *Headers) Add(name, value string) error {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return ErrInvalidHeader
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return ErrInvalidHeader
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return ErrInvalidHeader
	}
	h.entries = append(h.entries, Header{Name: name, Value: value})
	return nil
}

// AddRaw appends a header without validation, for internal use once bytes
// have already been validated by the request-line/header-block reader.
func (h *Headers) AddRaw(name, value string) {
	h.entries = append(h.entries, Header{Name: name, Value: value})
}

// Contains reports whether any entry matches name case-insensitively.
func (h *Headers) Contains(name string) bool {
	for _, e := range h.entries {
		if eqFold(e.Name, name) {
			return true
		}
	}
	return false
}

// Get returns the first value for name (case-insensitive), or "" with ok
// false if absent.
func (h *Headers) Get(name string) (string, bool) {
	for _, e := range h.entries {
		if eqFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in insertion order.
func (h *Headers) Values(name string) []string {
	var out []string
	for _, e := range h.entries {
		if eqFold(e.Name, name) {
			out = append(out, e.Value)
		}
	}
	return out
}

// GetDate fetches name's value and parses it as an HTTP date (spec §3,
// "get-as-date", trying RFC 1123, RFC 850, then ANSI asctime).
func (h *Headers) GetDate(name string) (time.Time, bool) {
	v, ok := h.Get(name)
	if !ok {
		return time.Time{}, false
	}
	return ParseHTTPDate(v)
}

// All returns every entry, in insertion order. The caller must not mutate
// the returned slice.
func (h *Headers) All() []Header {
	return h.entries
}

// RemoveAll deletes every entry matching name (case-insensitive).
func (h *Headers) RemoveAll(name string) {
	out := h.entries[:0]
	for _, e := range h.entries {
		if !eqFold(e.Name, name) {
			out = append(out, e)
		}
	}
	h.entries = out
}

// ReplaceFirst replaces the first entry matching name with (name, value),
// preserving its position, and returns the previous value. If no entry
// matched, the header is appended and ok is false.
func (h *Headers) ReplaceFirst(name, value string) (previous string, ok bool) {
	for i, e := range h.entries {
		if eqFold(e.Name, name) {
			previous = e.Value
			h.entries[i] = Header{Name: name, Value: value}
			return previous, true
		}
	}
	h.entries = append(h.entries, Header{Name: name, Value: value})
	return "", false
}

// Set replaces all existing entries for name with a single (name, value)
// entry at the position of the first existing match, or appends if absent.
func (h *Headers) Set(name, value string) {
	found := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if eqFold(e.Name, name) {
			if !found {
				out = append(out, Header{Name: name, Value: value})
				found = true
			}
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, Header{Name: name, Value: value})
	}
	h.entries = out
}

// Len returns the number of entries.
func (h *Headers) Len() int { return len(h.entries) }

// Param is one entry of a parsed parameter list: the bare value (first
// entry, empty Key) or a "key=value" pair.
type Param struct {
	Key   string
	Value string
}

// ParseParams splits a header value of the form `v; k1=v1; k2="v2"` into an
// ordered parameter list whose first entry is the bare value with an empty
// Key (spec §3 "parse-params").
func ParseParams(value string) []Param {
	parts := strings.Split(value, ";")
	out := make([]Param, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i == 0 {
			out = append(out, Param{Value: p})
			continue
		}
		k, v, found := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if found && len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		out = append(out, Param{Key: k, Value: v})
	}
	return out
}
