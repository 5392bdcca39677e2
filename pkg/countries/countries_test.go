package countries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[
  {
    "cca2": "FR",
    "name": {"common": "France", "official": "French Republic"},
    "altSpellings": ["FR", "République française"],
    "translations": {"deu": {"common": "Frankreich", "official": "Französische Republik"}}
  },
  {
    "cca2": "US",
    "name": {"common": "United States", "official": "United States of America"},
    "altSpellings": ["US", "USA", "United States of America"],
    "translations": {"fra": {"common": "États-Unis", "official": "Les états-unis d'Amérique"}}
  }
]`

func TestTable_Lookup(t *testing.T) {
	table, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "alt spelling", input: "usa", expected: "US", ok: true},
		{name: "common name", input: "France", expected: "FR", ok: true},
		{name: "official name", input: "FRENCH REPUBLIC", expected: "FR", ok: true},
		{name: "translation", input: "frankreich", expected: "FR", ok: true},
		{name: "accented translation", input: "États-Unis", expected: "US", ok: true},
		{name: "unknown", input: "Atlantis", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := table.Lookup(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestTable_NilIsEmpty(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("France")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestLoadOrFetch_DownloadsAndCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(sample))
	}))
	defer server.Close()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	path := filepath.Join(t.TempDir(), "instance", "countries.json")

	table, err := LoadOrFetch(context.Background(), path, server.URL, server.Client(), logger)
	require.NoError(t, err)
	code, ok := table.Lookup("French Republic")
	require.True(t, ok)
	assert.Equal(t, "FR", code)

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = LoadOrFetch(context.Background(), path, server.URL, server.Client(), logger)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoadOrFetch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	_, err := LoadOrFetch(context.Background(), filepath.Join(t.TempDir(), "c.json"), server.URL, server.Client(), logger)
	assert.Error(t, err)
}
