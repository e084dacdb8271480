package reliability

import (
	"context"
	"sort"
	"sync"

	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/outage"
	"github.com/dd0wney/gac/pkg/parallel"
	"github.com/dd0wney/gac/pkg/topology"
)

// Summary is the aggregated reliability outcome for one network across a
// scenario set.
type Summary struct {
	LOLEHoursPerYr    float64
	EUEMWhPerYr       float64
	AverageShortfallMW float64
	ScenariosRun      int
	ScenariosWithLoss int
}

// Options configures the aggregator's parallel fan-out.
type Options struct {
	Workers int // pool size for the fan-out; 0 or 1 -> sequential
}

// Aggregate evaluates every scenario and folds the results into a Summary.
// Evaluation is embarrassingly parallel: each worker owns one
// scenario and writes into a disjoint slot of a preallocated results
// slice, so there is no contention and no result ever needs a lock.
// Folding itself happens after every worker has finished (the single
// reduce barrier), sorted by scenario index first so the sum is
// bit-identical across runs regardless of worker scheduling order.
// Cancellation is observed at scenario-loop boundaries; a cancelled run
// discards all partial results and returns the context's error kind.
func Aggregate(ctx context.Context, net *topology.Network, scenarios []outage.Scenario, opts Options) (Summary, error) {
	results := make([]ScenarioResult, len(scenarios))

	if opts.Workers <= 1 || len(scenarios) <= 1 {
		for i, s := range scenarios {
			if err := ctxErr(ctx); err != nil {
				return Summary{}, err
			}
			results[i] = Evaluate(net, s)
		}
	} else {
		pool, err := parallel.NewWorkerPool(opts.Workers)
		if err != nil {
			// Falls back to sequential rather than failing the analysis
			// outright; a bad worker count is a tuning mistake, not a
			// reason to abandon a reliability run.
			for i, s := range scenarios {
				if err := ctxErr(ctx); err != nil {
					return Summary{}, err
				}
				results[i] = Evaluate(net, s)
			}
		} else {
			var wg sync.WaitGroup
			wg.Add(len(scenarios))
			for i, s := range scenarios {
				i, s := i, s
				pool.Submit(func() {
					defer wg.Done()
					if ctx.Err() != nil {
						return
					}
					results[i] = Evaluate(net, s)
				})
			}
			wg.Wait()
			pool.Close()
		}
		if err := ctxErr(ctx); err != nil {
			return Summary{}, err
		}
	}

	return fold(results), nil
}

// ctxErr maps a finished context to the matching analysis error kind.
func ctxErr(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return gacerrors.Timeout("reliability.Aggregate")
	default:
		return gacerrors.Cancelled("reliability.Aggregate")
	}
}

// fold sorts results by scenario index and sums probability-weighted
// shortfall in that fixed canonical order
// requirement (sums only, commutative+associative, order-independent in
// value but still performed in one fixed order for bit-reproducibility
// across runs and across Go versions' floating point scheduling).
func fold(results []ScenarioResult) Summary {
	sorted := append([]ScenarioResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var loleSum, eueSum float64
	lossCount := 0
	for _, r := range sorted {
		if r.HasShortfall {
			loleSum += r.Probability
			lossCount++
		}
		eueSum += r.Probability * r.ShortfallMW
	}

	summary := Summary{
		LOLEHoursPerYr:    HoursPerYear * loleSum,
		EUEMWhPerYr:       HoursPerYear * eueSum,
		ScenariosRun:      len(sorted),
		ScenariosWithLoss: lossCount,
	}
	if lossCount > 0 {
		summary.AverageShortfallMW = summary.EUEMWhPerYr / float64(lossCount)
	}
	return summary
}
