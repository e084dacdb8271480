// Package analysis is the typed request/result dispatch layer: it
// resolves a request against the Topology, invokes the matching assembly
// and solve path, joins the Result Cache, and emits one structured log
// event per analysis. It is deliberately thin — every solve algorithm
// lives in its own package; this package only wires them to a common
// entry point and a common cache/log contract.
package analysis

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/dd0wney/gac/pkg/acpf"
	"github.com/dd0wney/gac/pkg/admittance"
	"github.com/dd0wney/gac/pkg/cache"
	"github.com/dd0wney/gac/pkg/dcpf"
	"github.com/dd0wney/gac/pkg/logging"
	"github.com/dd0wney/gac/pkg/metrics"
	"github.com/dd0wney/gac/pkg/opf"
	"github.com/dd0wney/gac/pkg/ptdf"
	"github.com/dd0wney/gac/pkg/reliability"
	"github.com/dd0wney/gac/pkg/solverbridge"
	"github.com/dd0wney/gac/pkg/topology"
)

// Kind names one of the request variants: {Y-bus, DC-PF, AC-PF,
// DC-OPF, AC-OPF, N-1, PTDF, Reliability}. N-1 has no solve algorithm
// of its own — it is repeated DC-PF dispatch over a contingency list
// (N1Screen).
type Kind string

const (
	KindYBus        Kind = "ybus"
	KindDCPF        Kind = "dcpf"
	KindACPF        Kind = "acpf"
	KindPTDFRow     Kind = "ptdf_row"
	KindDCOPF       Kind = "dcopf"
	KindACOPF       Kind = "acopf"
	KindReliability Kind = "reliability"
	KindN1Screen    Kind = "n1_screen"
)

// Dispatcher ties a Network-scoped set of analyses to one shared Result
// Cache and logger. One Dispatcher is expected per loaded network.
type Dispatcher struct {
	net     *topology.Network
	cache   *cache.Cache
	logger  logging.Logger
	metrics *metrics.Registry
}

// NewDispatcher builds a Dispatcher over net, sharing c across every
// request kind (the cache is process-wide, not per-request-kind).
// A nil logger uses logging.DefaultLogger(); metrics go to
// metrics.DefaultRegistry() unless WithMetrics overrides it.
func NewDispatcher(net *topology.Network, c *cache.Cache, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Dispatcher{net: net, cache: c, logger: logger, metrics: metrics.DefaultRegistry()}
}

// WithMetrics overrides the Dispatcher's metrics registry, for tests or
// multi-network processes that want isolated Prometheus registries.
func (d *Dispatcher) WithMetrics(m *metrics.Registry) *Dispatcher {
	d.metrics = m
	return d
}

// event is the structured log record emitted after every analysis:
// {kind, duration_ms, converged, iterations, cache_hit}. Converged
// and Iterations are omitted (zero value) for algorithms that don't
// report them (DC-PF, PTDF never fail to converge by construction).
type event struct {
	kind       Kind
	start      time.Time
	usesCache  bool
	cacheHit   bool
	converged  *bool
	iterations *int
}

func (d *Dispatcher) begin(kind Kind) *event {
	return &event{kind: kind, start: time.Now()}
}

func (e *event) emit(d *Dispatcher, err error) {
	duration := time.Since(e.start)
	fields := []logging.Field{
		logging.String("kind", string(e.kind)),
		logging.Int64("duration_ms", duration.Milliseconds()),
		logging.Bool("cache_hit", e.cacheHit),
	}
	if e.converged != nil {
		fields = append(fields, logging.Bool("converged", *e.converged))
	}
	if e.iterations != nil {
		fields = append(fields, logging.Int("iterations", *e.iterations))
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if d.metrics != nil {
		d.metrics.RecordAnalysis(string(e.kind), status, duration)
		if e.usesCache {
			d.metrics.RecordCacheOutcome(e.cacheHit)
			_, _, used, budget := d.cache.Stats()
			d.metrics.SetCacheUsage(used, budget, d.cache.Len())
		}
		if e.converged != nil && e.iterations != nil {
			d.metrics.RecordConvergence(string(e.kind), *e.converged, *e.iterations)
		}
	}

	if err != nil {
		d.logger.Error("analysis_complete", append(fields, logging.Error(err))...)
		return
	}
	d.logger.Info("analysis_complete", fields...)
}

// cachedCompute runs compute under fp, transparently joining the Result
// Cache through cache.Cache.GetOrCompute: a prior hit short-
// circuits compute entirely, and concurrent identical requests join the
// same in-flight call via singleflight. It leaves hit/miss accounting
// entirely to the Cache itself rather than pre-checking Get here too —
// a second Get call on the same fp would double-count against
// Cache.Stats without changing the result. The cacheHit flag on the
// caller's log event is set iff compute never ran, which is true both
// for a pre-existing hit and for a singleflight follower that joined
// another goroutine's in-flight compute.
func cachedCompute[T any](d *Dispatcher, fp cache.Fingerprint, e *event, compute func() (T, error)) (T, error) {
	var zero T
	e.usesCache = true
	ran := false
	entry, err := d.cache.GetOrCompute(fp, func() (cache.Entry, error) {
		ran = true
		v, err := compute()
		if err != nil {
			return cache.Entry{}, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Compress(raw), nil
	})
	e.cacheHit = !ran
	if err != nil {
		return zero, err
	}

	raw, err := cache.Decompress(entry)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// YBus resolves a bus-admittance assembly request. Assembly is cheap
// relative to any solve and its complex-valued CSR does not fit the
// byte-oriented Result Cache's JSON round trip, so it is recomputed per
// request rather than cached.
func (d *Dispatcher) YBus() (*admittance.YBus, error) {
	e := d.begin(KindYBus)
	res, err := admittance.BuildYBus(d.net)
	e.emit(d, err)
	return res, err
}

// DCPF resolves a DC power flow request, caching by (network, "dcpf",
// slack choice).
func (d *Dispatcher) DCPF(opts dcpf.Options) (*dcpf.Result, error) {
	e := d.begin(KindDCPF)
	fp := cache.ComputeFingerprint(d.net, string(KindDCPF), encodeDCPFOptions(opts))
	res, err := cachedCompute(d, fp, e, func() (*dcpf.Result, error) {
		return dcpf.Solve(d.net, opts)
	})
	e.emit(d, err)
	return res, err
}

// ACPF resolves an AC power flow request, caching by (network, "acpf",
// tolerance/iteration options). Non-convergence is not an error:
// the cached result simply carries Converged=false.
func (d *Dispatcher) ACPF(ctx context.Context, opts acpf.Options) (*acpf.Result, error) {
	e := d.begin(KindACPF)
	fp := cache.ComputeFingerprint(d.net, string(KindACPF), encodeACPFOptions(opts))
	res, err := cachedCompute(d, fp, e, func() (*acpf.Result, error) {
		return acpf.Solve(ctx, d.net, opts)
	})
	if res != nil {
		converged := res.Converged
		e.converged = &converged
		iterations := res.Iterations
		e.iterations = &iterations
	}
	e.emit(d, err)
	return res, err
}

// PTDFRow resolves a single-bus PTDF row request. The underlying
// ptdf.Engine factors once per slack and is not itself cached — only the
// resulting row is — since a full Engine cannot be serialized through the
// byte-oriented Result Cache.
func (d *Dispatcher) PTDFRow(slack, source topology.BusID) (map[topology.BranchID]float64, error) {
	e := d.begin(KindPTDFRow)
	fp := cache.ComputeFingerprint(d.net, string(KindPTDFRow), encodePTDFRowOptions(slack, source))
	res, err := cachedCompute(d, fp, e, func() (map[topology.BranchID]float64, error) {
		eng, err := ptdf.NewEngine(d.net, slack)
		if err != nil {
			return nil, err
		}
		defer eng.Release()
		return eng.Row(source)
	})
	e.emit(d, err)
	return res, err
}

// OPF resolves a DC-OPF, SOCP-OPF or full NLP-OPF request by dispatching
// to the Solver Bridge. OPF results are never cached: the
// subprocess the bridge invokes is stateful external infrastructure
// (warm-started between calls, potentially non-deterministic solver
// internals), so treating its output as content-addressable by network
// + options would risk serving a stale or inconsistent result.
func (d *Dispatcher) OPF(ctx context.Context, opts opf.Options, bridge *solverbridge.Bridge) (*opf.Result, error) {
	kind := KindDCOPF
	if opts.Formulation != opf.FormulationDC {
		kind = KindACOPF
	}
	e := d.begin(kind)
	start := time.Now()
	res, err := opf.Solve(ctx, d.net, opts, bridge)
	if res != nil {
		iterations := res.Iterations
		e.iterations = &iterations
	}
	if d.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		d.metrics.RecordSolverDispatch(formulationLabel(opts.Formulation), status, time.Since(start))
	}
	e.emit(d, err)
	return res, err
}

func formulationLabel(f opf.Formulation) string {
	switch f {
	case opf.FormulationDC:
		return "dc"
	case opf.FormulationSOCP:
		return "socp"
	case opf.FormulationNLP:
		return "nlp"
	default:
		return "unknown"
	}
}

// Reliability resolves a Monte Carlo reliability run,
// caching by (network, "reliability", seed/scenario-count/rates).
func (d *Dispatcher) Reliability(ctx context.Context, seed uint64, numScenarios int, rates ReliabilityRates) (reliability.Summary, error) {
	e := d.begin(KindReliability)
	fp := cache.ComputeFingerprint(d.net, string(KindReliability), encodeReliabilityOptions(seed, numScenarios, rates))
	res, err := cachedCompute(d, fp, e, func() (reliability.Summary, error) {
		scenarios := rates.generate(d.net, seed, numScenarios)
		return reliability.Aggregate(ctx, d.net, scenarios, reliability.Options{Workers: rates.Workers})
	})
	if err == nil && d.metrics != nil {
		d.metrics.RecordReliabilityRun(res.ScenariosRun, res.LOLEHoursPerYr, res.EUEMWhPerYr)
	}
	e.emit(d, err)
	return res, err
}

// N1Screen runs DC power flow once per contingency in contingencies
// (each the set of branches taken out of service) — the N-1 contingency
// screen, implemented as repeated DC-PF rather than its own solve
// algorithm. Outages are applied to a private clone of the network, so
// concurrent analyses against the shared value are never perturbed.
func (d *Dispatcher) N1Screen(contingencies [][]topology.BranchID) (*N1Report, error) {
	e := d.begin(KindN1Screen)
	scratch := d.net.Clone()
	report := &N1Report{PerOutage: make([]N1Result, len(contingencies))}
	for i, outage := range contingencies {
		restore := takeOffline(scratch, outage)
		res, err := dcpf.Solve(scratch, dcpf.Options{})
		restore()
		if err != nil {
			e.emit(d, err)
			return nil, err
		}
		worst, pct := maxLoading(scratch, res)
		r := N1Result{
			Contingency:      outage,
			MaxLoadingBranch: worst,
			MaxLoadingPct:    pct,
			Secure:           pct <= 100,
			Result:           res,
		}
		report.PerOutage[i] = r
		if r.Secure {
			report.NSecure++
		}
	}
	e.emit(d, nil)
	return report, nil
}

// N1Report is the full contingency screen outcome: one record per
// outage plus how many of them left every branch within its rating.
type N1Report struct {
	PerOutage []N1Result
	NSecure   int
}

// N1Result is one contingency's post-outage DC power flow outcome. A
// network with no rated branches is vacuously secure at zero loading.
type N1Result struct {
	Contingency      []topology.BranchID
	MaxLoadingBranch topology.BranchID
	MaxLoadingPct    float64
	Secure           bool
	Result           *dcpf.Result
}

func takeOffline(net *topology.Network, branches []topology.BranchID) (restore func()) {
	prior := make([]bool, len(branches))
	for i, b := range branches {
		br := net.Branch(b)
		prior[i] = br.Status
		br.Status = false
	}
	return func() {
		for i, b := range branches {
			net.Branch(b).Status = prior[i]
		}
	}
}

// maxLoading returns the in-service branch with the highest post-outage
// loading, as a percentage of its rating.
func maxLoading(net *topology.Network, res *dcpf.Result) (topology.BranchID, float64) {
	var worst topology.BranchID
	worstRatio := 0.0
	for i := range net.Branches() {
		br := net.Branch(topology.BranchID(i))
		if !br.Status {
			continue
		}
		rating := br.EffectiveRateMVA()
		if rating <= 0 || math.IsInf(rating, 1) {
			continue
		}
		ratio := abs(res.BranchFlows[i]) / rating
		if ratio > worstRatio {
			worstRatio = ratio
			worst = topology.BranchID(i)
		}
	}
	return worst, worstRatio * 100
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
