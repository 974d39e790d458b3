package cointax

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Options tune an evaluation.
type Options struct {
	Logger *slog.Logger
	// Parallelism bounds the number of depot groups evaluated at once. Zero means
	// GOMAXPROCS.
	Parallelism int
}

// Evaluation is the full result of evaluating a ledger.
type Evaluation struct {
	Rules     *RuleSet          `json:"rules"`
	Disposals []MatchedDisposal `json:"disposals"`
	Records   []Record          `json:"records"`
	Summaries []TaxYearSummary  `json:"summaries"`
	Failures  []DepotFailure    `json:"failures"`
	Gaps      []PriceGap        `json:"gaps"`
}

// Summary returns the summary of depot for year.
func (ev *Evaluation) Summary(depot Depot, year int) (TaxYearSummary, bool) {
	for _, s := range ev.Summaries {
		if s.Depot == depot && s.Year == year {
			return s, true
		}
	}
	return TaxYearSummary{}, false
}

// partial is the result of one engine.
type partial struct {
	disposals   []MatchedDisposal
	records     []Record
	gaps        []PriceGap
	failures    []DepotFailure
	inventories []*Inventory
}

// Evaluate matches, categorizes and aggregates every operation of ledger.
//
// Configuration errors are returned before anything is processed. Inventory errors
// abort only the depots concerned, they are reported in Evaluation.Failures. Missing
// prices are reported in Evaluation.Gaps.
//
// In per depot mode, depots that never exchange lots are evaluated concurrently. They
// only share the price cache of prices.
func Evaluate(ctx context.Context, ledger *Ledger, rules *RuleSet, prices *PriceResolver, opts Options) (*Evaluation, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := ledger.Check(); err != nil {
		return nil, err
	}
	if prices.Fiat != rules.Fiat {
		return nil, fmt.Errorf("%w: prices are in %q, rules in %q", ErrInvalidRuleConfiguration, prices.Fiat, rules.Fiat)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	groups := partition(ledger, rules.Mode)
	log.Info("evaluating ledger", "operations", ledger.Len(), "groups", len(groups), "mode", rules.Mode, "policy", rules.Policy)

	results := make([]partial, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, ops := range groups {
		g.Go(func() error {
			e := newEngine(gctx, ledger, rules, prices, log)
			if err := e.run(ops); err != nil {
				return err
			}
			results[i] = e.result()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ev := &Evaluation{Rules: rules}
	var inventories []*Inventory
	for _, r := range results {
		ev.Disposals = append(ev.Disposals, r.disposals...)
		ev.Records = append(ev.Records, r.records...)
		ev.Gaps = append(ev.Gaps, r.gaps...)
		ev.Failures = append(ev.Failures, r.failures...)
		inventories = append(inventories, r.inventories...)
	}
	slices.SortFunc(ev.Disposals, compareDisposals)
	slices.SortFunc(ev.Records, compareRecords)
	slices.SortFunc(ev.Failures, func(a, b DepotFailure) int { return cmp.Compare(a.Depot, b.Depot) })

	depots, first := activeDepots(ledger, rules.Mode, ev.Failures)
	agg := &Aggregator{Rules: rules, Prices: prices, Logger: log}
	summaries, gaps := agg.Aggregate(ctx, ev.Records, inventories, depots, first, ledger.Span().Years())
	ev.Summaries = summaries
	ev.Gaps = append(ev.Gaps, gaps...)
	slices.SortStableFunc(ev.Gaps, func(a, b PriceGap) int {
		if c := cmp.Compare(a.Asset, b.Asset); c != 0 {
			return c
		}
		if c := a.Day.Compare(b.Day); c != 0 {
			return c
		}
		return cmp.Compare(a.OperationID, b.OperationID)
	})
	return ev, nil
}

// result returns what the engine produced for the depots that did not fail.
func (e *engine) result() partial {
	var p partial
	for _, d := range e.disposals {
		if e.failed[e.depot(Operation{Depot: d.Depot})] == nil {
			p.disposals = append(p.disposals, d)
		}
	}
	for _, r := range e.records {
		if e.failed[e.depot(Operation{Depot: r.Depot})] == nil {
			p.records = append(p.records, r)
		}
	}
	p.gaps = e.gaps
	for _, inv := range e.inv.All() {
		if e.failed[inv.Depot()] == nil {
			p.inventories = append(p.inventories, inv)
		}
	}
	for d, err := range e.failed {
		p.failures = append(p.failures, DepotFailure{Depot: d, Err: err})
	}
	return p
}

// activeDepots returns the depots to summarize and the first year each is active in.
func activeDepots(ledger *Ledger, mode Mode, failures []DepotFailure) ([]Depot, map[Depot]int) {
	failed := make(map[Depot]bool)
	for _, f := range failures {
		failed[f.Depot] = true
	}
	first := make(map[Depot]int)
	for op := range ledger.Operations() {
		d := op.Depot
		if mode == Merged {
			d = AllDepots
		}
		if _, ok := first[d]; !ok && !failed[d] {
			first[d] = op.Time.Year()
		}
	}
	depots := make([]Depot, 0, len(first))
	for d := range first {
		depots = append(depots, d)
	}
	slices.Sort(depots)
	return depots, first
}

// partition splits the ledger in groups of operations that can be evaluated
// independently. In merged mode there is a single group. In per depot mode, depots
// connected by a reference (a transfer, or a trade or fee across depots) share a group.
func partition(ledger *Ledger, mode Mode) [][]Operation {
	if mode == Merged {
		return [][]Operation{slices.Collect(ledger.Operations())}
	}

	parent := make(map[Depot]Depot)
	var find func(Depot) Depot
	find = func(d Depot) Depot {
		p, ok := parent[d]
		if !ok || p == d {
			parent[d] = d
			return d
		}
		root := find(p)
		parent[d] = root
		return root
	}
	union := func(a, b Depot) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// the smallest depot is the root, so that groups are named the same way
		// on every run.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}
	for op := range ledger.Operations() {
		find(op.Depot)
		if ref, ok := ledger.Operation(op.Ref); ok {
			union(op.Depot, ref.Depot)
		}
	}

	index := make(map[Depot]int)
	var groups [][]Operation
	for _, d := range ledger.Depots() {
		r := find(d)
		if _, ok := index[r]; !ok {
			index[r] = len(groups)
			groups = append(groups, nil)
		}
	}
	for op := range ledger.Operations() {
		i := index[find(op.Depot)]
		groups[i] = append(groups[i], op)
	}
	return groups
}
