/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package spotdiff

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

// Base is the pixel size of the artwork the normalized coordinates refer to.
type Base struct {
	W int `json:"w" mapstructure:"w"`
	H int `json:"h" mapstructure:"h"`
}

// Target is one claimable difference. The same ID may appear once per panel.
type Target struct {
	ID    string  `json:"id" mapstructure:"id"`
	Panel string  `json:"panel,omitempty" mapstructure:"panel"`
	NX    float64 `json:"nx" mapstructure:"nx"`
	NY    float64 `json:"ny" mapstructure:"ny"`
	NR    float64 `json:"nr" mapstructure:"nr"`
}

type Level struct {
	Image string   `json:"image" mapstructure:"image"`
	Base  Base     `json:"base" mapstructure:"base"`
	Spots []Target `json:"spots" mapstructure:"spots"`
}

// Levels is keyed by level number and never mutated after startup.
type Levels map[int]Level

// Distinct returns the number of distinct target IDs in the level.
func (l Level) Distinct() int {
	seen := make(map[string]struct{}, len(l.Spots))
	for _, s := range l.Spots {
		seen[s.ID] = struct{}{}
	}
	return len(seen)
}

// Has reports whether targetID names a target of this level.
func (l Level) Has(targetID string) bool {
	for _, s := range l.Spots {
		if s.ID == targetID {
			return true
		}
	}
	return false
}

func (l Level) validate() error {
	if len(l.Spots) == 0 {
		return errors.New("level has no spots")
	}
	for i, s := range l.Spots {
		if s.ID == "" {
			return fmt.Errorf("spot %d has no id", i)
		}
		if s.NR <= 0 {
			return fmt.Errorf("spot %q has no tolerance", s.ID)
		}
	}
	return nil
}

// DefaultLevels is the built-in farm scene. Each difference is listed once
// per panel under a shared id.
func DefaultLevels() Levels {
	return Levels{
		1: {
			Image: "/assets/farm_twins_cropped.png",
			Base:  Base{W: 1024, H: 500},
			Spots: []Target{
				{ID: "sun", Panel: "left", NX: 0.175, NY: 0.14, NR: 0.06},
				{ID: "sun", Panel: "right", NX: 0.675, NY: 0.14, NR: 0.06},

				{ID: "truck", Panel: "left", NX: 0.385, NY: 0.49, NR: 0.06},
				{ID: "truck", Panel: "right", NX: 0.885, NY: 0.49, NR: 0.06},

				{ID: "boy", Panel: "left", NX: 0.07, NY: 0.8, NR: 0.06},
				{ID: "boy", Panel: "right", NX: 0.57, NY: 0.8, NR: 0.06},

				{ID: "cow", Panel: "left", NX: 0.45, NY: 0.55, NR: 0.06},
				{ID: "cow", Panel: "right", NX: 0.95, NY: 0.55, NR: 0.06},

				{ID: "roof", Panel: "left", NX: 0.28, NY: 0.3, NR: 0.06},
				{ID: "roof", Panel: "right", NX: 0.78, NY: 0.3, NR: 0.06},
			},
		},
	}
}

type levelFile struct {
	Levels map[string]Level `mapstructure:"levels"`
}

// LoadLevels reads level definitions from a JSON, YAML or TOML file and
// merges them over the built-in levels.
func LoadLevels(path string) (Levels, error) {
	levels := DefaultLevels()
	if path == "" {
		return levels, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read levels: %w", err)
	}

	var file levelFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode levels: %w", err)
	}

	for key, level := range file.Levels {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid level number %q", key)
		}
		if err := level.validate(); err != nil {
			return nil, fmt.Errorf("level %d: %w", n, err)
		}
		levels[n] = level
	}

	return levels, nil
}
