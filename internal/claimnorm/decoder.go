package claimnorm

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NewRecordStream picks the decoder matching a source's on-disk format:
// Alpha exports are CSV with a header row, Beta exports are a JSON array
// of objects.
func NewRecordStream(src SourceSystem, r io.Reader) (RecordStream, error) {
	switch src {
	case SourceAlpha:
		return NewCSVStream(r), nil
	case SourceBeta:
		return NewJSONStream(r), nil
	}
	_, err := ParseSourceSystem(string(src))
	return nil, err
}

// CSVStream decodes a CSV file with a header row into raw records.
type CSVStream struct {
	reader *csv.Reader
	header []string
	line   int
}

// NewCSVStream wraps r. A leading UTF-8 BOM is dropped.
func NewCSVStream(r io.Reader) *CSVStream {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return &CSVStream{reader: reader}
}

// Next returns the next data row keyed by header name. Short rows leave
// the trailing fields missing; extra cells are ignored.
func (s *CSVStream) Next() (RawRecord, error) {
	if s.header == nil {
		header, err := s.reader.Read()
		if err != nil {
			if err == io.EOF {
				return RawRecord{}, io.EOF
			}
			return RawRecord{}, fmt.Errorf("read csv header: %w", err)
		}
		for i, h := range header {
			header[i] = strings.Trim(strings.TrimSpace(h), "\"'")
		}
		s.header = header
	}

	for {
		row, err := s.reader.Read()
		if err == io.EOF {
			return RawRecord{}, io.EOF
		}
		if err != nil {
			return RawRecord{}, fmt.Errorf("read csv row %d: %w", s.line+1, err)
		}
		s.line++
		if isBlankRow(row) {
			continue
		}
		rec := NewRawRecord(len(s.header))
		for i, name := range s.header {
			if i >= len(row) {
				break
			}
			rec.SetString(name, row[i])
		}
		return rec, nil
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// JSONStream decodes a top-level JSON array of objects one element at a time.
type JSONStream struct {
	dec     *json.Decoder
	started bool
	done    bool
	index   int
}

// NewJSONStream wraps r. A leading UTF-8 BOM is dropped.
func NewJSONStream(r io.Reader) *JSONStream {
	return &JSONStream{dec: json.NewDecoder(stripBOM(r))}
}

// Next returns the next array element as a raw record. Elements that are
// not objects come back as empty records so the adapter marks them
// malformed; syntax errors abort the stream.
func (s *JSONStream) Next() (RawRecord, error) {
	if s.done {
		return RawRecord{}, io.EOF
	}
	if !s.started {
		tok, err := s.dec.Token()
		if err != nil {
			if err == io.EOF {
				s.done = true
				return RawRecord{}, io.EOF
			}
			return RawRecord{}, fmt.Errorf("read json: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return RawRecord{}, fmt.Errorf("read json: expected top-level array, got %v", tok)
		}
		s.started = true
	}

	if !s.dec.More() {
		if _, err := s.dec.Token(); err != nil {
			return RawRecord{}, fmt.Errorf("read json: %w", err)
		}
		s.done = true
		return RawRecord{}, io.EOF
	}

	var elem json.RawMessage
	if err := s.dec.Decode(&elem); err != nil {
		return RawRecord{}, fmt.Errorf("read json element %d: %w", s.index, err)
	}
	s.index++
	rec, err := objectToRecord(elem)
	if err != nil {
		return RawRecord{}, fmt.Errorf("read json element %d: %w", s.index-1, err)
	}
	return rec, nil
}

var errNotObject = errors.New("not an object")

// objectToRecord walks one JSON object keeping key order.
func objectToRecord(raw json.RawMessage) (RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return RawRecord{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return NewRawRecord(0), nil
	}

	rec := NewRawRecord(8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return RawRecord{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return RawRecord{}, errNotObject
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return RawRecord{}, err
		}
		rec.Set(key, scalarString(val))
	}
	return rec, nil
}

// scalarString converts a JSON value to the record's string-or-null form.
// Numbers and booleans keep their literal text; objects and arrays are
// kept as compact JSON.
func scalarString(val json.RawMessage) *string {
	trimmed := bytes.TrimSpace(val)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var s string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return &s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		s = buf.String()
	} else {
		s = string(trimmed)
	}
	return &s
}

// stripBOM drops a leading UTF-8 byte order mark.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
