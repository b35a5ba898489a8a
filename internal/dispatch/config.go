package dispatch

import (
	"errors"
	"fleet-reposition-service/internal/config"
	"fmt"
	"os"
	"time"
)

// Config tunes one search run. Every field has a default; the caps bound
// the number of node expansions regardless of input size.
type Config struct {
	MaxDepth               int           `yaml:"max_depth"`
	StepMinutes            int           `yaml:"step_minutes"`
	BucketMinutes          int           `yaml:"bucket_minutes"`
	LookaheadBuckets       int           `yaml:"lookahead_buckets"`
	TopK                   int           `yaml:"top_k"`
	FallbackZones          int           `yaml:"fallback_zones"`
	MaxSimultaneousActions int           `yaml:"max_simultaneous_actions"`
	CombinationPool        int           `yaml:"combination_pool"`
	MaxCombinations        int           `yaml:"max_combinations"`
	MaxBatches             int           `yaml:"max_batches"`
	SiblingCap             int           `yaml:"sibling_cap"`
	CostNormalizerSeconds  float64       `yaml:"cost_normalizer_seconds"`
	MatchMultiplier        float64       `yaml:"match_multiplier"`
	OversupplyMultiple     float64       `yaml:"oversupply_multiple"`
	NearTolerance          float64       `yaml:"near_tolerance"`
	Deadline               time.Duration `yaml:"deadline"`
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:               3,
		StepMinutes:            10,
		BucketMinutes:          10,
		LookaheadBuckets:       3,
		TopK:                   3,
		FallbackZones:          2,
		MaxSimultaneousActions: 3,
		CombinationPool:        8,
		MaxCombinations:        20,
		MaxBatches:             50,
		SiblingCap:             8,
		CostNormalizerSeconds:  3600,
		MatchMultiplier:        2,
		OversupplyMultiple:     2,
		NearTolerance:          0.0005,
		Deadline:               0,
	}
}

// LoadConfig overlays the YAML file at path on DefaultConfig. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if err := config.LoadYAML(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load search config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.MaxDepth < 0:
		return fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	case c.StepMinutes < 1:
		return fmt.Errorf("step_minutes must be >= 1, got %d", c.StepMinutes)
	case c.BucketMinutes < 1 || c.BucketMinutes > 60:
		return fmt.Errorf("bucket_minutes must be in [1,60], got %d", c.BucketMinutes)
	case c.LookaheadBuckets < 1:
		return fmt.Errorf("lookahead_buckets must be >= 1, got %d", c.LookaheadBuckets)
	case c.TopK < 1:
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	case c.FallbackZones < 0:
		return fmt.Errorf("fallback_zones must be >= 0, got %d", c.FallbackZones)
	case c.MaxSimultaneousActions < 1:
		return fmt.Errorf("max_simultaneous_actions must be >= 1, got %d", c.MaxSimultaneousActions)
	case c.CombinationPool < 0 || c.MaxCombinations < 0:
		return errors.New("combination_pool and max_combinations must be >= 0")
	case c.MaxBatches < 1:
		return fmt.Errorf("max_batches must be >= 1, got %d", c.MaxBatches)
	case c.SiblingCap < 1:
		return fmt.Errorf("sibling_cap must be >= 1, got %d", c.SiblingCap)
	case c.CostNormalizerSeconds <= 0:
		return fmt.Errorf("cost_normalizer_seconds must be > 0, got %v", c.CostNormalizerSeconds)
	case c.MatchMultiplier < 0:
		return fmt.Errorf("match_multiplier must be >= 0, got %v", c.MatchMultiplier)
	case c.OversupplyMultiple < 1:
		return fmt.Errorf("oversupply_multiple must be >= 1, got %v", c.OversupplyMultiple)
	case c.NearTolerance < 0:
		return fmt.Errorf("near_tolerance must be >= 0, got %v", c.NearTolerance)
	case c.Deadline < 0:
		return fmt.Errorf("deadline must be >= 0, got %v", c.Deadline)
	}
	return nil
}

func (c Config) step() time.Duration { return time.Duration(c.StepMinutes) * time.Minute }
