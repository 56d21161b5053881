package validate

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	"polyvis/internal/errors"
	"polyvis/internal/storage"
)

// ExpectationsFile mirrors the on-disk expectations TOML:
//
//	[expected]
//	nodes = 120
//	edges = 340
//	vectors = 100
//
//	[tolerance]
//	nodes = 0.10
//	edges = 0.25
//	vectors = 0.10
type ExpectationsFile struct {
	Expected  MetricSet    `toml:"expected"`
	Tolerance ToleranceSet `toml:"tolerance"`
}

// MetricSet holds expected store counts.
type MetricSet struct {
	Nodes   int `toml:"nodes"`
	Edges   int `toml:"edges"`
	Vectors int `toml:"vectors"`
}

// ToleranceSet holds allowed relative variance per metric.
type ToleranceSet struct {
	Nodes   float64 `toml:"nodes"`
	Edges   float64 `toml:"edges"`
	Vectors float64 `toml:"vectors"`
}

// Violation is one metric outside its tolerance band.
type Violation struct {
	Metric    string  `json:"metric"`
	Expected  int     `json:"expected"`
	Actual    int     `json:"actual"`
	Variance  float64 `json:"variance"`
	Tolerance float64 `json:"tolerance"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %d, got %d (variance %.1f%% > tolerance %.1f%%)",
		v.Metric, v.Expected, v.Actual, v.Variance*100, v.Tolerance*100)
}

// LoadExpectations reads an expectations file.
func LoadExpectations(path string) (*ExpectationsFile, error) {
	var file ExpectationsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid,
			fmt.Sprintf("cannot read expectations file %s", path), err)
	}
	return &file, nil
}

// CompareStats measures each store count against its expectation.
// Metrics with a non-positive expected value are not compared.
func CompareStats(stats *storage.Stats, exp *ExpectationsFile) []Violation {
	checks := []struct {
		metric    string
		expected  int
		actual    int
		tolerance float64
	}{
		{"nodes", exp.Expected.Nodes, stats.Nodes, exp.Tolerance.Nodes},
		{"edges", exp.Expected.Edges, stats.Edges, exp.Tolerance.Edges},
		{"vectors", exp.Expected.Vectors, stats.Vectors, exp.Tolerance.Vectors},
	}

	var violations []Violation
	for _, c := range checks {
		if c.expected <= 0 {
			continue
		}
		variance := math.Abs(float64(c.actual-c.expected)) / float64(c.expected)
		if variance > c.tolerance {
			violations = append(violations, Violation{
				Metric:    c.metric,
				Expected:  c.expected,
				Actual:    c.actual,
				Variance:  variance,
				Tolerance: c.tolerance,
			})
		}
	}
	return violations
}

// WriteBaseline records the current counts as a future expectations
// file, applying one tolerance across all metrics.
func WriteBaseline(path string, stats *storage.Stats, tolerance float64) error {
	file := ExpectationsFile{
		Expected: MetricSet{
			Nodes:   stats.Nodes,
			Edges:   stats.Edges,
			Vectors: stats.Vectors,
		},
		Tolerance: ToleranceSet{
			Nodes:   tolerance,
			Edges:   tolerance,
			Vectors: tolerance,
		},
	}

	data, err := gotoml.Marshal(file)
	if err != nil {
		return errors.Wrap(errors.InternalError, "cannot encode baseline", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.InternalError,
			fmt.Sprintf("cannot write baseline file %s", path), err)
	}
	return nil
}
