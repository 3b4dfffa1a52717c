// Package dispatch enumerates the four-axis strategy parameter grid
// and enqueues one Celery-compatible task message per sweep point,
// grounded on original_source/backtest/startup.py's seed_backtest_requests
// (frange-based grid, pipelined at 1,000 messages per round trip).
package dispatch

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Axis is one inclusive-start, exclusive-end, fixed-step range of the
// parameter grid.
type Axis struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Grid is the four-axis Cartesian product definition.
type Grid struct {
	LimitDistance     Axis `yaml:"limit_distance"`
	StopCountLimit    Axis `yaml:"stop_count_limit"`
	StopCooloffPeriod Axis `yaml:"stop_cooloff_period"`
	StopDistance      Axis `yaml:"stop_distance"`
}

// ReferenceGrid is the canonical grid from spec §4.4, matching the
// original system's seed_backtest_requests ranges exactly:
// 19 x 3 x 9 x 19 = 9,747 sweep points.
var ReferenceGrid = Grid{
	LimitDistance:     Axis{Start: 1, Stop: 20, Step: 1},
	StopCountLimit:    Axis{Start: 1, Stop: 4, Step: 1},
	StopCooloffPeriod: Axis{Start: 30, Stop: 300, Step: 30},
	StopDistance:      Axis{Start: 0.1, Stop: 2.0, Step: 0.1},
}

// LoadGrid reads a grid override from a YAML file (spec §9.1's
// "reference grid is overridable via grid.yaml"). Absent a file,
// callers should fall back to ReferenceGrid.
func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, err
	}
	var g Grid
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// count returns the number of integer steps an axis spans, using
// integer-counter iteration (spec §9: "guard against accumulated
// float drift by iterating with integer counters and multiplying,
// not by repeated addition of 0.1").
func (a Axis) count() int {
	n := 0
	for i := 0; ; i++ {
		v := a.Start + float64(i)*a.Step
		if v >= a.Stop {
			break
		}
		n++
	}
	return n
}

// values materializes the axis's values via integer-counter
// multiplication rather than repeated float addition.
func (a Axis) values() []float64 {
	n := a.count()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a.Start + float64(i)*a.Step
	}
	return out
}

// SweepPoint is one materialized Cartesian-product combination.
type SweepPoint struct {
	LimitDistance     float64
	StopCountLimit    int
	StopCooloffPeriod int
	StopDistance      float64
}

// Enumerate materializes the full Cartesian product of g's four axes,
// in the same nesting order as the original (limit, stop count,
// cooloff, stop distance outermost to innermost).
func Enumerate(g Grid) []SweepPoint {
	limits := g.LimitDistance.values()
	counts := g.StopCountLimit.values()
	cooloffs := g.StopCooloffPeriod.values()
	distances := g.StopDistance.values()

	points := make([]SweepPoint, 0, len(limits)*len(counts)*len(cooloffs)*len(distances))
	for _, l := range limits {
		for _, c := range counts {
			for _, co := range cooloffs {
				for _, d := range distances {
					points = append(points, SweepPoint{
						LimitDistance:     l,
						StopCountLimit:    int(c),
						StopCooloffPeriod: int(co),
						StopDistance:      d,
					})
				}
			}
		}
	}
	return points
}

// Count returns |grid| without materializing every point, used by the
// dispatcher to log the expected total up front.
func Count(g Grid) int {
	return g.LimitDistance.count() * g.StopCountLimit.count() * g.StopCooloffPeriod.count() * g.StopDistance.count()
}
