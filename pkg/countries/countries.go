// Package countries resolves free-form country names to ISO 3166-1 alpha-2 codes using the
// mledoze/countries dataset.
package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gobusters/ectologger"
)

// DefaultURL is the upstream location of countries.json.
const DefaultURL = "https://raw.githubusercontent.com/mledoze/countries/master/dist/countries.json"

// Name is one spelling of a country name.
type Name struct {
	Common   string `json:"common"`
	Official string `json:"official"`
}

// Country is the subset of a countries.json entry used for lookups.
type Country struct {
	CCA2         string          `json:"cca2"`
	Name         Name            `json:"name"`
	AltSpellings []string        `json:"altSpellings"`
	Translations map[string]Name `json:"translations"`
}

// Table is an immutable lookup table built once and handed to its users.
type Table struct {
	countries []Country
	index     map[string]string
}

// NewTable indexes countries. When two countries share a spelling the first one wins,
// and alternative spellings of a country take precedence over its translated names.
func NewTable(countries []Country) *Table {
	t := &Table{
		countries: countries,
		index:     make(map[string]string),
	}
	add := func(name, code string) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return
		}
		if _, exists := t.index[key]; !exists {
			t.index[key] = code
		}
	}
	for _, c := range countries {
		for _, alt := range c.AltSpellings {
			add(alt, c.CCA2)
		}
		names := make([]Name, 0, len(c.Translations)+1)
		for _, tr := range c.Translations {
			names = append(names, tr)
		}
		names = append(names, c.Name)
		for _, n := range names {
			add(n.Official, c.CCA2)
			add(n.Common, c.CCA2)
		}
	}
	return t
}

// Parse decodes a countries.json document.
func Parse(r io.Reader) (*Table, error) {
	var countries []Country
	if err := json.NewDecoder(r).Decode(&countries); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}
	return NewTable(countries), nil
}

// Load reads a countries.json file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// LoadOrFetch reads path, downloading the dataset from url and caching it at path when
// the file does not exist yet.
func LoadOrFetch(ctx context.Context, path, url string, client *http.Client, logger ectologger.Logger) (*Table, error) {
	table, err := Load(path)
	if err == nil {
		return table, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"path": path,
		"url":  url,
	}).Info("Countries file missing, downloading")

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download countries: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download countries: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	table, err = Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to create countries cache directory")
		return table, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Failed to cache countries file")
	}
	return table, nil
}

// Lookup returns the alpha-2 code of a country name, ignoring case.
func (t *Table) Lookup(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	code, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// Len returns the number of countries in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.countries)
}
