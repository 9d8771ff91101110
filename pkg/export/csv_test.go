package export

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_BOMHeaderAndCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, CSVOptions{CRLF: true, BOM: true})

	require.NoError(t, w.WriteHeader([]string{"id", "customer"}))
	require.NoError(t, w.WriteRow([]any{int64(1), "Acme, Inc."}))
	require.NoError(t, w.WriteRow([]any{int64(2), nil}))
	require.NoError(t, w.Close())

	assert.Equal(t, "\ufeffid,customer\r\n1,\"Acme, Inc.\"\r\n2,\r\n", buf.String())
}

func TestCSVWriter_DelimiterAndLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, CSVOptions{Delimiter: ';'})

	require.NoError(t, w.WriteHeader([]string{"a", "b"}))
	require.NoError(t, w.WriteRow([]any{1.5, true}))
	require.NoError(t, w.Close())

	assert.Equal(t, "a;b\n1.5;true\n", buf.String())
}

func TestCSVWriter_FlushReachesHTTPFlusher(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewCSVWriter(rec, CSVOptions{})

	require.NoError(t, w.WriteHeader([]string{"id"}))
	require.NoError(t, w.Flush())

	assert.True(t, rec.Flushed)
	assert.Equal(t, "id\n", rec.Body.String())
}

func TestCSVWriter_LineCountIsRowsPlusHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, CSVOptions{})
	require.NoError(t, w.WriteHeader([]string{"id"}))
	for i := 0; i < 42; i++ {
		require.NoError(t, w.WriteRow([]any{int64(i)}))
	}
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 43)
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"utf8 bytes", []byte("abc"), "abc"},
		{"binary bytes", []byte{0xff, 0x00}, "/wA="},
		{"int64", int64(-7), "-7"},
		{"float", 1234.5, "1234.5"},
		{"bool", false, "false"},
		{"time", ts, "2024-03-01 14:30:00"},
		{"time with micros", ts.Add(1500 * time.Microsecond), "2024-03-01 14:30:00.0015"},
		{"json object", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
