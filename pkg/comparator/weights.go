package comparator

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/normalizers"
)

// Method selects the per-attribute similarity function.
type Method string

const (
	// MethodString is Jaro-Winkler over normalized values.
	MethodString Method = "string"
	// MethodJaro is plain Jaro over normalized values, without the prefix bonus.
	MethodJaro Method = "jaro"
	// MethodLevenshtein is one minus the edit distance over the longer normalized value.
	// It suits codes and identifiers where a typo should cost a little, not everything.
	MethodLevenshtein Method = "levenshtein"
	// MethodExact is 1 when values are equal, 0 otherwise. Integer values compare numerically.
	MethodExact Method = "exact"
	// MethodNumeric decreases linearly with the difference, reaching 0 at MaxDiff.
	MethodNumeric Method = "numeric"
	// MethodDate decreases linearly with the distance in days, reaching 0 at MaxDiff.
	MethodDate Method = "date"
	// MethodCountry compares ISO country codes resolved through the countries table.
	MethodCountry Method = "country"
)

// Rule configures how one attribute name contributes to a score.
type Rule struct {
	Weight float64 `toml:"weight"`
	Method Method  `toml:"method"`
	// Normalizer names a registered normalizer, or a comma separated chain applied in order.
	Normalizer string  `toml:"normalizer"`
	MaxDiff    float64 `toml:"max_diff"`
	// Identifying rules make up the confidence denominator.
	Identifying bool `toml:"identifying"`
	// Blocking rules produce the keys used to search identity candidates.
	Blocking bool `toml:"blocking"`
}

// chain splits Normalizer into normalizer names.
func (r Rule) chain() []string {
	if r.Normalizer == "" {
		return nil
	}
	parts := strings.Split(r.Normalizer, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// Weights maps an object type and an attribute name to its rule. Attribute names without
// a rule weigh zero.
type Weights map[models.ObjectType]map[string]Rule

// Rule returns the rule for an attribute, if any.
func (w Weights) Rule(objectType models.ObjectType, name string) (Rule, bool) {
	rules, ok := w[objectType]
	if !ok {
		return Rule{}, false
	}
	rule, ok := rules[name]
	return rule, ok
}

func (w Weights) clone() Weights {
	out := make(Weights, len(w))
	for t, rules := range w {
		copied := make(map[string]Rule, len(rules))
		for name, rule := range rules {
			copied[name] = rule
		}
		out[t] = copied
	}
	return out
}

// DefaultWeights returns the built-in rules.
func DefaultWeights() Weights {
	title := Rule{Weight: 3, Method: MethodString, Normalizer: "title", Identifying: true, Blocking: true}
	originalTitle := Rule{Weight: 2, Method: MethodString, Normalizer: "title", Blocking: true}
	year := Rule{Weight: 2, Method: MethodExact, Identifying: true}
	identifier := Rule{Weight: 5, Method: MethodExact, Normalizer: "identifier", Blocking: true}
	country := Rule{Weight: 1, Method: MethodCountry}

	return Weights{
		models.ObjectTypeMovie: {
			"title":          title,
			"original_title": originalTitle,
			"year":           year,
			"imdb_id":        identifier,
			"tmdb_id":        identifier,
			"release_date":   {Weight: 1, Method: MethodDate, MaxDiff: 30},
			"duration":       {Weight: 1, Method: MethodNumeric, MaxDiff: 10},
			"rating":         {Weight: 0.5, Method: MethodNumeric, MaxDiff: 2},
			"director":       {Weight: 1.5, Method: MethodString, Normalizer: "name"},
			"country":        country,
		},
		models.ObjectTypeSerie: {
			"title":          title,
			"original_title": originalTitle,
			"year":           year,
			"imdb_id":        identifier,
			"tmdb_id":        identifier,
			"country":        country,
		},
		models.ObjectTypeSeason: {
			"serie_title": {Weight: 2, Method: MethodString, Normalizer: "title", Identifying: true, Blocking: true},
			"number":      {Weight: 3, Method: MethodExact, Identifying: true},
			"title":       {Weight: 1, Method: MethodString, Normalizer: "title"},
			"year":        {Weight: 1, Method: MethodExact},
			"imdb_id":     identifier,
		},
		models.ObjectTypeEpisode: {
			"serie_title":   {Weight: 2, Method: MethodString, Normalizer: "title", Blocking: true},
			"season_number": {Weight: 2, Method: MethodExact, Identifying: true},
			"number":        {Weight: 3, Method: MethodExact, Identifying: true},
			"title":         {Weight: 2, Method: MethodString, Normalizer: "title", Blocking: true},
			"air_date":      {Weight: 1, Method: MethodDate, MaxDiff: 3},
			"imdb_id":       identifier,
		},
		models.ObjectTypePerson: {
			"name":       {Weight: 3, Method: MethodString, Normalizer: "name", Identifying: true, Blocking: true},
			"birth_date": {Weight: 2, Method: MethodDate, MaxDiff: 1, Identifying: true},
			"imdb_id":    identifier,
			"country":    {Weight: 0.5, Method: MethodCountry},
		},
	}
}

// ParseWeights decodes a TOML weight document and lays it over the defaults:
//
//	[movie.title]
//	weight = 4
//	method = "string"
//	blocking = true
func ParseWeights(data []byte) (Weights, error) {
	var doc map[string]map[string]Rule
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse comparator weights: %w", err)
	}

	weights := DefaultWeights().clone()
	for typeName, rules := range doc {
		objectType, ok := models.ObjectTypeFromName(typeName)
		if !ok {
			return nil, fmt.Errorf("comparator weights: unknown object type %q", typeName)
		}
		for name, rule := range rules {
			if err := rule.validate(); err != nil {
				return nil, fmt.Errorf("comparator weights: %s.%s: %w", typeName, name, err)
			}
			if weights[objectType] == nil {
				weights[objectType] = make(map[string]Rule)
			}
			weights[objectType][name] = rule
		}
	}
	return weights, nil
}

// LoadWeights reads a TOML weight file. An empty path yields the defaults.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read comparator weights: %w", err)
	}
	return ParseWeights(data)
}

func (r Rule) validate() error {
	if r.Weight < 0 {
		return fmt.Errorf("negative weight %v", r.Weight)
	}
	for _, name := range r.chain() {
		if _, ok := normalizers.Get(name); !ok {
			return fmt.Errorf("unknown normalizer %q", name)
		}
	}
	switch r.Method {
	case MethodString, MethodJaro, MethodLevenshtein, MethodExact, MethodCountry:
	case MethodNumeric, MethodDate:
		if r.MaxDiff <= 0 {
			return fmt.Errorf("method %s needs a positive max_diff", r.Method)
		}
	default:
		return fmt.Errorf("unknown method %q", r.Method)
	}
	return nil
}
