package claimnorm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s RecordStream) []RawRecord {
	t.Helper()
	var out []RawRecord
	for {
		rec, err := s.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestCSVStream(t *testing.T) {
	input := "\xEF\xBB\xBFclaim_id,patient_id,status\n" +
		"A123,P001,denied\n" +
		"\n" +
		"A124,,approved,extra\n" +
		"A125\n"
	recs := drain(t, NewCSVStream(strings.NewReader(input)))
	require.Len(t, recs, 3)

	id, ok := recs[0].Lookup("claim_id")
	assert.True(t, ok)
	assert.Equal(t, "A123", id)
	assert.Equal(t, []string{"claim_id", "patient_id", "status"}, recs[0].Keys())

	pid, ok := recs[1].Lookup("patient_id")
	assert.True(t, ok)
	assert.Equal(t, "", pid)
	assert.Equal(t, 3, recs[1].Len())

	_, ok = recs[2].Lookup("status")
	assert.False(t, ok, "short rows leave trailing fields missing")
}

func TestCSVStream_Empty(t *testing.T) {
	assert.Empty(t, drain(t, NewCSVStream(strings.NewReader(""))))
	assert.Empty(t, drain(t, NewCSVStream(strings.NewReader("claim_id,status\n"))))
}

func TestJSONStream(t *testing.T) {
	input := `[
	  {"id": "B1", "member": null, "code": 99213, "status": "denied", "flags": {"a": [1, 2]}},
	  "not an object",
	  {"id": "B2", "paid": true}
	]`
	recs := drain(t, NewJSONStream(strings.NewReader(input)))
	require.Len(t, recs, 3)

	assert.Equal(t, []string{"id", "member", "code", "status", "flags"}, recs[0].Keys())
	_, ok := recs[0].Lookup("member")
	assert.False(t, ok)
	code, _ := recs[0].Lookup("code")
	assert.Equal(t, "99213", code)
	flags, _ := recs[0].Lookup("flags")
	assert.Equal(t, `{"a":[1,2]}`, flags)

	assert.Zero(t, recs[1].Len())

	paid, _ := recs[2].Lookup("paid")
	assert.Equal(t, "true", paid)
}

func TestJSONStream_Errors(t *testing.T) {
	_, err := NewJSONStream(strings.NewReader(`{"id": "B1"}`)).Next()
	assert.Error(t, err)

	s := NewJSONStream(strings.NewReader(`[{"id": "B1"}, {"id": `))
	_, err = s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestJSONStream_EmptyArray(t *testing.T) {
	assert.Empty(t, drain(t, NewJSONStream(strings.NewReader(" [ ] "))))
}

func TestNewRecordStream(t *testing.T) {
	s, err := NewRecordStream(SourceAlpha, strings.NewReader(""))
	require.NoError(t, err)
	assert.IsType(t, &CSVStream{}, s)

	s, err = NewRecordStream(SourceBeta, strings.NewReader(""))
	require.NoError(t, err)
	assert.IsType(t, &JSONStream{}, s)

	_, err = NewRecordStream("xml", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnknownSource)
}
