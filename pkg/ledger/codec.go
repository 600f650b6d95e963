package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ScriptPrefix introduces the ledger in the hosted data.js feed
const ScriptPrefix = "window.BENCHMARK_DATA = "

// Format selects the persisted form written by Store.Save
type Format int

const (
	FormatJSON Format = iota
	FormatScript
)

// FormatFor picks the script form for .js names and JSON otherwise
func FormatFor(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".js") {
		return FormatScript
	}
	return FormatJSON
}

// Load parses a persisted ledger, either plain JSON or the data.js script form.
// Unknown fields are ignored. No partial ledger is returned on failure.
func Load(data []byte) (*Ledger, error) {
	data = stripScript(data)
	if len(data) == 0 {
		return nil, malformed("empty input", nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, malformed("top level is not an object", err)
	}

	l := &Ledger{Entries: make(map[string][]Entry)}

	if raw, ok := top["lastUpdate"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &l.LastUpdate); err != nil {
			return nil, malformed("lastUpdate is not an integer", err)
		}
	}
	if raw, ok := top["repoUrl"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &l.RepoURL); err != nil {
			return nil, malformed("repoUrl is not a string", err)
		}
	}

	rawEntries, ok := top["entries"]
	if !ok || isNull(rawEntries) {
		return nil, malformed("missing entries mapping", nil)
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(rawEntries, &groups); err != nil {
		return nil, malformed("entries is not a mapping", err)
	}

	for group, rawList := range groups {
		var items []json.RawMessage
		if err := json.Unmarshal(rawList, &items); err != nil || isNull(rawList) {
			return nil, malformed(fmt.Sprintf("group %q is not an array", group), err)
		}

		list := make([]Entry, 0, len(items))
		for i, item := range items {
			var e Entry
			if err := json.Unmarshal(item, &e); err != nil {
				return nil, malformed(fmt.Sprintf("group %q entry %d", group, i), err)
			}
			if e.Benches == nil {
				e.Benches = []Measurement{}
			}
			if err := Validate(&e); err != nil {
				return nil, malformed(fmt.Sprintf("group %q entry %d", group, i), err)
			}
			list = append(list, e)
		}
		l.Entries[group] = list
	}

	return l, nil
}

// Serialize produces the JSON form of the ledger
func Serialize(l *Ledger) ([]byte, error) {
	out := *l
	out.Entries = make(map[string][]Entry, len(l.Entries))
	for group, list := range l.Entries {
		if list == nil {
			list = []Entry{}
		}
		out.Entries[group] = list
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to marshal ledger: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SerializeScript produces the data.js form consumed by the benchmark page
func SerializeScript(l *Ledger) ([]byte, error) {
	data, err := Serialize(l)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(ScriptPrefix) + len(data) + 1)
	buf.WriteString(ScriptPrefix)
	buf.Write(data)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// stripScript removes the data.js assignment wrapper if present
func stripScript(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if i := bytes.IndexByte(data, '{'); i > 0 {
		head := bytes.TrimSpace(data[:i])
		if bytes.HasSuffix(head, []byte("=")) {
			data = data[i:]
		}
	}
	data = bytes.TrimSuffix(data, []byte(";"))
	return bytes.TrimSpace(data)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
