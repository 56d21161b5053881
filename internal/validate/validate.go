// Package validate checks store health after ingestion and compares
// run results against recorded expectations.
package validate

import (
	"fmt"
	"time"

	"polyvis/internal/errors"
	"polyvis/internal/storage"
)

// Vector coverage requirements.
const (
	CoverageAll        = "all"
	CoverageExperience = "experience"
	CoverageNone       = "none"
)

// Baseline is a snapshot of store counts taken before a run.
type Baseline struct {
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Vectors   int       `json:"vectors"`
	Timestamp time.Time `json:"timestamp"`
}

// Expectations parameterize a validation run.
type Expectations struct {
	MinNodesAdded  int    `json:"minNodesAdded"`
	VectorCoverage string `json:"vectorCoverage"`
}

// DefaultExpectations requires nothing beyond structural health:
// no node floor, experience coverage reported as a warning only.
func DefaultExpectations() Expectations {
	return Expectations{MinNodesAdded: 0, VectorCoverage: CoverageExperience}
}

// CheckResult is one validation check outcome.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Warning bool   `json:"warning,omitempty"`
	Detail  string `json:"detail"`
}

// Report aggregates all checks of one validation run.
type Report struct {
	Passed   bool          `json:"passed"`
	Baseline Baseline      `json:"baseline"`
	Results  []CheckResult `json:"results"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Summary  string        `json:"summary"`
}

func (r *Report) add(c CheckResult) {
	r.Results = append(r.Results, c)
	if c.Warning {
		r.Warnings = append(r.Warnings, c.Name+": "+c.Detail)
		return
	}
	if !c.Passed {
		r.Passed = false
		r.Errors = append(r.Errors, c.Name+": "+c.Detail)
	}
}

// CaptureBaseline snapshots the store before a run.
func CaptureBaseline(store *storage.Store) (Baseline, error) {
	stats, err := store.Stats()
	if err != nil {
		return Baseline{}, err
	}
	return Baseline{
		Nodes:     stats.Nodes,
		Edges:     stats.Edges,
		Vectors:   stats.Vectors,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Validate runs every check against the store's current state.
func Validate(store *storage.Store, baseline Baseline, exp Expectations) (*Report, error) {
	stats, err := store.Stats()
	if err != nil {
		return nil, err
	}

	report := &Report{Baseline: baseline, Passed: true}

	delta := stats.Nodes - baseline.Nodes
	report.add(CheckResult{
		Name:   "node growth",
		Passed: delta >= exp.MinNodesAdded,
		Detail: fmt.Sprintf("%+d nodes against a minimum of %d", delta, exp.MinNodesAdded),
	})

	switch exp.VectorCoverage {
	case CoverageAll:
		report.add(CheckResult{
			Name:   "vector coverage",
			Passed: stats.Vectors == stats.Nodes,
			Detail: fmt.Sprintf("%d vectors for %d nodes", stats.Vectors, stats.Nodes),
		})
	case CoverageExperience:
		experience, err := store.CountByDomain(storage.DomainExperience)
		if err != nil {
			return nil, err
		}
		// Short boxes are intentionally unembedded, so thin coverage
		// here is a warning rather than a failure.
		report.add(CheckResult{
			Name:    "vector coverage",
			Passed:  true,
			Warning: stats.Vectors < experience,
			Detail:  fmt.Sprintf("%d vectors for %d experience nodes", stats.Vectors, experience),
		})
	case CoverageNone, "":
	default:
		return nil, errors.New(errors.ValidationFailed,
			fmt.Sprintf("unknown vector coverage requirement %q", exp.VectorCoverage))
	}

	orphanEdges, err := store.OrphanEdgeCount()
	if err != nil {
		return nil, err
	}
	report.add(CheckResult{
		Name:   "orphan edges",
		Passed: orphanEdges == 0,
		Detail: fmt.Sprintf("%d edges point at missing nodes", orphanEdges),
	})

	duplicates, err := store.DuplicateIDCount()
	if err != nil {
		return nil, err
	}
	report.add(CheckResult{
		Name:   "duplicate ids",
		Passed: duplicates == 0,
		Detail: fmt.Sprintf("%d ids appear more than once", duplicates),
	})

	report.Summary = fmt.Sprintf("%d checks, %d errors, %d warnings",
		len(report.Results), len(report.Errors), len(report.Warnings))
	return report, nil
}
