// Package corpus processes batches of independent norm documents through the
// extraction pipeline with a bounded worker pool. The shared relationship
// store is the only cross-worker state.
package corpus

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/laguileracl/leychile-epub/pkg/extract"
	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/store"
	"github.com/laguileracl/leychile-epub/pkg/validate"
)

// Config configures a batch run.
type Config struct {
	// Workers bounds concurrency; 0 or negative means 4.
	Workers int

	// TrackRelations also runs the relationship tracker against the shared
	// store for every document.
	TrackRelations bool
}

// Result is the outcome of one document.
type Result struct {
	Path       string             `json:"path"`
	Document   *norma.Document    `json:"document,omitempty"`
	Validation *validate.Result   `json:"validation,omitempty"`
	Edges      []store.Edge       `json:"edges,omitempty"`
	Err        string             `json:"error,omitempty"`
}

// Runner runs the pipeline over many files. Each worker owns its parser;
// only the store is shared.
type Runner struct {
	config Config
	store  store.Store
}

// NewRunner creates a batch runner writing relationship state to st, which
// may be nil when Config.TrackRelations is off.
func NewRunner(config Config, st store.Store) *Runner {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Runner{config: config, store: st}
}

// Run processes every path and returns one result per path, sorted by path
// so output is deterministic regardless of worker scheduling. Per-document
// failures land in the result, not in the returned error; the error reports
// setup problems only.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	if r.config.TrackRelations && r.store == nil {
		return nil, fmt.Errorf("relation tracking requires a store")
	}
	if len(paths) == 0 {
		return nil, nil
	}

	results := make(chan Result)
	var collected []Result

	var collectWG sync.WaitGroup
	collectWG.Add(1)
	go func() {
		defer collectWG.Done()
		for res := range results {
			collected = append(collected, res)
		}
	}()

	throttle := make(chan struct{}, r.config.Workers)
	var workersWG sync.WaitGroup

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			break
		}

		workersWG.Add(1)
		throttle <- struct{}{}

		go func(path string) {
			defer workersWG.Done()
			defer func() { <-throttle }()

			results <- r.processOne(path)
		}(path)
	}

	workersWG.Wait()
	close(results)
	collectWG.Wait()

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Path < collected[j].Path
	})
	return collected, ctx.Err()
}

// processOne runs the full pipeline on one file.
func (r *Runner) processOne(path string) Result {
	res := Result{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Sprintf("reading: %v", err)
		return res
	}

	parser := extract.NewParser()
	doc, err := parser.Parse(string(data))
	if err != nil {
		res.Err = fmt.Sprintf("parsing: %v", err)
		return res
	}
	res.Document = doc
	res.Validation = validate.Document(doc, validate.ParseExpected(string(data)))

	if r.config.TrackRelations {
		tracker := extract.NewRelationTracker(r.store)
		edges, diags, err := tracker.Track(doc)
		if err != nil {
			res.Err = fmt.Sprintf("tracking relations: %v", err)
			return res
		}
		res.Edges = edges
		doc.Diagnostics = append(doc.Diagnostics, diags...)
	}

	return res
}
