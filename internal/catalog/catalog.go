package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrInvalidExercise = errors.New("invalid exercise")

// Exercise is a catalog entry: burning Calories takes Minutes at a steady pace.
type Exercise struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Minutes  int    `yaml:"minutes" json:"minutes"`
	Calories int    `yaml:"calories" json:"calories"`
}

// Suggestion is an exercise sized to reach a calorie target.
type Suggestion struct {
	Exercise          Exercise `json:"exercise"`
	TargetSeconds     int      `json:"targetSeconds"`
	TargetEnergyUnits int      `json:"targetEnergyUnits"`
}

type Catalog struct {
	Exercises  []Exercise `yaml:"exercises"`
	MaxMinutes int        `yaml:"max_minutes"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		MaxMinutes: 90,
		Exercises: []Exercise{
			{ID: "walk", Name: "Brisk walk", Minutes: 30, Calories: 120},
			{ID: "run", Name: "Running", Minutes: 30, Calories: 300},
			{ID: "bike", Name: "Cycling", Minutes: 30, Calories: 240},
			{ID: "swim", Name: "Swimming", Minutes: 30, Calories: 250},
			{ID: "yoga", Name: "Yoga", Minutes: 30, Calories: 90},
			{ID: "jump-rope", Name: "Jump rope", Minutes: 15, Calories: 180},
			{ID: "row", Name: "Rowing", Minutes: 20, Calories: 160},
		},
	}
}

// Load reads a YAML catalog. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(rawData, &c); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if c.MaxMinutes <= 0 {
		c.MaxMinutes = Default().MaxMinutes
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Exercises))
	for i, e := range c.Exercises {
		switch {
		case e.ID == "":
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidExercise, i)
		case seen[e.ID]:
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidExercise, e.ID)
		case e.Minutes <= 0 || e.Calories <= 0:
			return fmt.Errorf("%w: %q needs positive minutes and calories", ErrInvalidExercise, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Find returns the exercise with the given id.
func (c *Catalog) Find(id string) (Exercise, bool) {
	for _, e := range c.Exercises {
		if e.ID == id {
			return e, true
		}
	}
	return Exercise{}, false
}

// Match returns the exercises that reach calories within MaxMinutes, quickest
// first. A limit of zero or less returns all of them.
func (c *Catalog) Match(calories, limit int) []Suggestion {
	if calories <= 0 {
		return nil
	}

	var out []Suggestion
	for _, e := range c.Exercises {
		seconds := int(math.Ceil(float64(calories) * float64(e.Minutes*60) / float64(e.Calories)))
		if c.MaxMinutes > 0 && seconds > c.MaxMinutes*60 {
			continue
		}
		out = append(out, Suggestion{
			Exercise:          e,
			TargetSeconds:     seconds,
			TargetEnergyUnits: calories,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetSeconds != out[j].TargetSeconds {
			return out[i].TargetSeconds < out[j].TargetSeconds
		}
		return out[i].Exercise.ID < out[j].Exercise.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
