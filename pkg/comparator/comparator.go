// Package comparator scores how alike two attribute sets are.
package comparator

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/matcher/pkg/countries"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/normalizers"
)

// Result is a similarity in [0,1] plus the share of identifying attributes present on
// both sides. Confidence is informational; deciding on it is up to the caller.
type Result struct {
	Score      float64
	Confidence float64
}

// KeyScope selects which attributes produce lookup keys.
type KeyScope int

const (
	// KeyScopeIdentity restricts keys to blocking attributes (identity candidates).
	KeyScopeIdentity KeyScope = iota
	// KeyScopeNeighbours uses every weighted attribute (similarity neighbours).
	KeyScopeNeighbours
)

// Comparator is the pluggable scoring strategy shared by the resolver and the
// similarity index.
type Comparator interface {
	// Score returns a ComparatorError when an attribute value cannot be interpreted.
	Score(objectType models.ObjectType, a, b models.AttributeSet) (Result, error)
	// Keys returns the normalized lookup keys of an attribute set, sorted.
	Keys(objectType models.ObjectType, attrs models.AttributeSet, scope KeyScope) []models.MatchKey
	// Normalize returns the value stored alongside an attribute for key lookups.
	Normalize(objectType models.ObjectType, attr models.Attribute) string
}

// Weighted combines per-attribute similarities using configured weights.
type Weighted struct {
	weights   Weights
	countries *countries.Table
	scorer    *Scorer
	names     map[models.ObjectType][]string
}

// NewWeighted creates a weighted comparator. The countries table may be nil, in which
// case country attributes compare by normalized name.
func NewWeighted(weights Weights, table *countries.Table) *Weighted {
	names := make(map[models.ObjectType][]string, len(weights))
	for objectType, rules := range weights {
		list := make([]string, 0, len(rules))
		for name := range rules {
			list = append(list, name)
		}
		sort.Strings(list)
		names[objectType] = list
	}
	return &Weighted{
		weights:   weights,
		countries: table,
		scorer:    NewScorer(),
		names:     names,
	}
}

func (w *Weighted) Score(objectType models.ObjectType, a, b models.AttributeSet) (Result, error) {
	var weightedSum, totalWeight float64
	var expected, present int

	for _, name := range w.names[objectType] {
		rule := w.weights[objectType][name]
		if rule.Weight <= 0 {
			continue
		}

		left, right := a.ByName(name), b.ByName(name)
		if rule.Identifying {
			expected++
			if len(left) > 0 && len(right) > 0 {
				present++
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		// Multiple platforms may disagree; the closest pair counts.
		best := 0.0
		for _, x := range left {
			for _, y := range right {
				sim, err := w.similarity(objectType, rule, x, y)
				if err != nil {
					return Result{}, err
				}
				best = max(best, sim)
			}
		}

		weightedSum += rule.Weight * best
		totalWeight += rule.Weight
	}

	result := Result{}
	if totalWeight > 0 {
		result.Score = weightedSum / totalWeight
	}
	if expected > 0 {
		result.Confidence = float64(present) / float64(expected)
	}
	return result, nil
}

func (w *Weighted) similarity(objectType models.ObjectType, rule Rule, x, y models.Attribute) (float64, error) {
	switch rule.Method {
	case MethodString:
		nx, ny := w.Normalize(objectType, x), w.Normalize(objectType, y)
		if nx == "" || ny == "" {
			return 0, nil
		}
		return w.scorer.JaroWinkler(nx, ny), nil

	case MethodJaro, MethodLevenshtein:
		nx, ny := w.Normalize(objectType, x), w.Normalize(objectType, y)
		if nx == "" || ny == "" {
			return 0, nil
		}
		if rule.Method == MethodJaro {
			return w.scorer.Jaro(nx, ny), nil
		}
		return w.scorer.Levenshtein(nx, ny), nil

	case MethodExact:
		if x.Kind == models.AttributeKindInt || y.Kind == models.AttributeKindInt {
			vx, err := x.Int()
			if err != nil {
				return 0, merrors.NewComparatorError(x.Name, x.Value, err)
			}
			vy, err := y.Int()
			if err != nil {
				return 0, merrors.NewComparatorError(y.Name, y.Value, err)
			}
			if vx == vy {
				return 1, nil
			}
			return 0, nil
		}
		return w.scorer.ExactMatch(w.Normalize(objectType, x), w.Normalize(objectType, y), true), nil

	case MethodNumeric:
		vx, err := x.Float()
		if err != nil {
			return 0, merrors.NewComparatorError(x.Name, x.Value, err)
		}
		vy, err := y.Float()
		if err != nil {
			return 0, merrors.NewComparatorError(y.Name, y.Value, err)
		}
		return w.scorer.NumericProximity(vx, vy, rule.MaxDiff), nil

	case MethodDate:
		dx, err := x.Date()
		if err != nil {
			return 0, merrors.NewComparatorError(x.Name, x.Value, err)
		}
		dy, err := y.Date()
		if err != nil {
			return 0, merrors.NewComparatorError(y.Name, y.Value, err)
		}
		return w.scorer.DateProximity(dx, dy, int(rule.MaxDiff)), nil

	case MethodCountry:
		return w.scorer.ExactMatch(w.Normalize(objectType, x), w.Normalize(objectType, y), true), nil
	}
	return 0, nil
}

func (w *Weighted) Normalize(objectType models.ObjectType, attr models.Attribute) string {
	rule, ok := w.weights.Rule(objectType, attr.Name)
	if !ok {
		return strings.ToLower(strings.TrimSpace(attr.Value))
	}

	switch rule.Method {
	case MethodCountry:
		if code, found := w.countries.Lookup(attr.Value); found {
			return strings.ToLower(code)
		}
		return normalizers.NormalizeTitle(attr.Value)
	case MethodString, MethodJaro:
		if chain := rule.chain(); len(chain) > 0 {
			return normalizers.ApplyChain(attr.Value, chain...)
		}
		return normalizers.NormalizeTitle(attr.Value)
	case MethodExact, MethodLevenshtein:
		if chain := rule.chain(); len(chain) > 0 {
			return normalizers.ApplyChain(attr.Value, chain...)
		}
		return normalizers.NormalizeIdentifier(attr.Value)
	default:
		return strings.TrimSpace(attr.Value)
	}
}

func (w *Weighted) Keys(objectType models.ObjectType, attrs models.AttributeSet, scope KeyScope) []models.MatchKey {
	seen := make(map[models.MatchKey]struct{})
	var keys []models.MatchKey
	for _, attr := range attrs {
		rule, ok := w.weights.Rule(objectType, attr.Name)
		if !ok || rule.Weight <= 0 {
			continue
		}
		if scope == KeyScopeIdentity && !rule.Blocking {
			continue
		}
		key := models.MatchKey{Name: attr.Name, Value: w.Normalize(objectType, attr)}
		if key.Value == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Value < keys[j].Value
	})
	return keys
}
