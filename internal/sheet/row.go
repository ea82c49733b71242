package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Cell is one header/value pair of a row.
type Cell struct {
	Header string
	Value  string
}

// Row maps headers to cells in column order. It encodes as a JSON object
// whose keys follow the column order.
type Row []Cell

// Get returns the value stored under header.
func (r Row) Get(header string) (string, bool) {
	for _, c := range r {
		if c.Header == header {
			return c.Value, true
		}
	}
	return "", false
}

func (r *Row) set(header, value string) {
	for i := range *r {
		if (*r)[i].Header == header {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Cell{Header: header, Value: value})
}

// Headers returns the row's headers in order.
func (r Row) Headers() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Header
	}
	return out
}

// MarshalJSON encodes the row as an ordered object.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := sonic.Marshal(c.Header)
		if err != nil {
			return nil, fmt.Errorf("marshal header: %w", err)
		}
		val, err := sonic.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal cell: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping the key order of the document.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		header, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected header token %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("read cell %q: %w", header, err)
		}
		row.set(header, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read row end: %w", err)
	}
	*r = row
	return nil
}

// Parse splits a CSV document naively: every comma separates cells and
// quoted fields are not recognised. The first line holds the headers.
// Cells beyond the header count are dropped; missing cells are absent.
func Parse(doc string) []Row {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return []Row{}
	}

	lines := strings.Split(doc, "\n")
	headers := strings.Split(strings.TrimSuffix(lines[0], "\r"), ",")

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := strings.Split(strings.TrimSuffix(line, "\r"), ",")
		row := make(Row, 0, len(headers))
		for i, cell := range cells {
			if i >= len(headers) {
				break
			}
			row.set(headers[i], cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// Format renders rows as tab-separated text. The first row's headers form the
// header line and select the columns of every row; each line ends with "\n".
func Format(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	headers := rows[0].Headers()
	var sb strings.Builder
	sb.WriteString(strings.Join(headers, "\t"))
	sb.WriteByte('\n')
	for _, r := range rows {
		for i, h := range headers {
			if i > 0 {
				sb.WriteByte('\t')
			}
			v, _ := r.Get(h)
			sb.WriteString(v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
