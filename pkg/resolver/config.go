package resolver

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/matcher/pkg/models"
)

// SurvivorPolicy chooses which candidate survives a merge.
type SurvivorPolicy string

const (
	// SurvivorLowestID keeps the candidate with the lowest id.
	SurvivorLowestID SurvivorPolicy = "lowest_id"
	// SurvivorHighestScore keeps the best scoring candidate, lowest id on ties.
	SurvivorHighestScore SurvivorPolicy = "highest_score"
)

const (
	DefaultThreshold          = 0.8
	DefaultMaxCandidates      = 50
	DefaultMaxConflictRetries = 3
	DefaultStoreTimeout       = 10 * time.Second
)

type Config struct {
	// Threshold is the score a candidate needs to count as the same entity.
	Threshold float64
	// TypeThresholds overrides Threshold per object type. Zero values inherit.
	TypeThresholds     map[models.ObjectType]float64
	Survivor           SurvivorPolicy
	StoreTimeout       time.Duration
	MaxCandidates      int
	MaxConflictRetries int
}

func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		TypeThresholds: map[models.ObjectType]float64{
			models.ObjectTypePerson: 0.9,
		},
		Survivor:           SurvivorLowestID,
		StoreTimeout:       DefaultStoreTimeout,
		MaxCandidates:      DefaultMaxCandidates,
		MaxConflictRetries: DefaultMaxConflictRetries,
	}
}

// ThresholdFor returns the match threshold of an object type.
func (c Config) ThresholdFor(objectType models.ObjectType) float64 {
	if t := c.TypeThresholds[objectType]; t > 0 {
		return t
	}
	return c.Threshold
}

func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("match threshold must be in (0, 1], got %v", c.Threshold)
	}
	for objectType, t := range c.TypeThresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("match threshold for %s must be in [0, 1], got %v", objectType, t)
		}
	}
	switch c.Survivor {
	case SurvivorLowestID, SurvivorHighestScore:
	default:
		return fmt.Errorf("unknown merge survivor policy %q", c.Survivor)
	}
	if c.MaxCandidates < 2 {
		return fmt.Errorf("max candidates must be at least 2, got %d", c.MaxCandidates)
	}
	if c.MaxConflictRetries < 1 {
		return fmt.Errorf("max conflict retries must be at least 1, got %d", c.MaxConflictRetries)
	}
	return nil
}
