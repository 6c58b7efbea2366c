package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Row maps feature names to cells. Absent keys read as Missing.
type Row map[string]Value

func (r Row) Get(key string) Value {
	return r[key]
}

// Dataset is an ordered batch of rows. The analysed feature set is the first
// row's keys in their original order. A Dataset is not modified after New.
type Dataset struct {
	label string
	keys  []string
	rows  []Row
}

// New builds a dataset. When keys is nil the first row's keys are used in
// sorted order, since a Go map carries no order of its own.
func New(label string, keys []string, rows []Row) *Dataset {
	if keys == nil && len(rows) > 0 {
		keys = make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	return &Dataset{
		label: label,
		keys:  append([]string(nil), keys...),
		rows:  rows,
	}
}

func (d *Dataset) Label() string { return d.label }

func (d *Dataset) Len() int { return len(d.rows) }

// Keys returns a copy of the feature keys.
func (d *Dataset) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Column returns every row's cell for key, Missing where absent.
func (d *Dataset) Column(key string) []Value {
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.Get(key)
	}
	return out
}

// Split cuts the rows at i: rows[0:i] and rows[i:]. Both halves keep the
// parent's key set.
func (d *Dataset) Split(i int) (*Dataset, *Dataset) {
	if i < 0 {
		i = 0
	}
	if i > len(d.rows) {
		i = len(d.rows)
	}
	head := &Dataset{label: d.label, keys: d.keys, rows: d.rows[:i:i]}
	tail := &Dataset{label: d.label, keys: d.keys, rows: d.rows[i:]}
	return head, tail
}

// ContextSample renders the first n rows as a JSON array, keys in dataset order.
func (d *Dataset) ContextSample(n int) (string, error) {
	if n > len(d.rows) {
		n = len(d.rows)
	}
	if n < 0 {
		n = 0
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := d.writeRow(&buf, d.rows[i]); err != nil {
			return "", err
		}
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

func (d *Dataset) writeRow(buf *bytes.Buffer, r Row) error {
	seen := make(map[string]struct{}, len(d.keys))
	ordered := make([]string, 0, len(r))
	for _, k := range d.keys {
		if _, ok := r[k]; ok {
			ordered = append(ordered, k)
			seen[k] = struct{}{}
		}
	}
	var extra []string
	for k := range r {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	ordered = append(ordered, extra...)

	buf.WriteByte('{')
	for i, k := range ordered {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(r[k])
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return nil
}

// Rows is the wire form of a row batch. Decoding keeps the first object's
// key order, which plain map decoding would lose.
type Rows struct {
	Keys []string
	Rows []Row
}

func (r *Rows) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rows must be an array of objects: %w", err)
	}

	r.Keys = nil
	r.Rows = make([]Row, 0, len(raw))
	for i, msg := range raw {
		var row Row
		if err := json.Unmarshal(msg, &row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if row == nil {
			return fmt.Errorf("row %d: expected an object", i)
		}
		if i == 0 {
			keys, err := objectKeys(msg)
			if err != nil {
				return fmt.Errorf("row 0: %w", err)
			}
			r.Keys = keys
		}
		r.Rows = append(r.Rows, row)
	}
	return nil
}

func (r Rows) MarshalJSON() ([]byte, error) {
	s, err := New("", r.Keys, r.Rows).ContextSample(len(r.Rows))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Dataset wraps the decoded rows.
func (r Rows) Dataset(label string) *Dataset {
	keys := r.Keys
	if keys == nil {
		keys = []string{}
	}
	return New(label, keys, r.Rows)
}

func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object")
	}

	var keys []string
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, dup := seen[key]; !dup {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
