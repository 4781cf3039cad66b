package carvekit

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/Will-Banksy/carvekit/ioblock"
	"github.com/Will-Banksy/carvekit/pairing"
	"github.com/Will-Banksy/carvekit/pattern"
	"github.com/Will-Banksy/carvekit/search"
	"github.com/Will-Banksy/carvekit/validate"
)

// Result is one carved file's final outcome: the candidate that produced
// it and the validator's verdict on it.
type Result struct {
	Candidate  pairing.CarveCandidate
	Validation validate.Validation
}

// Engine wires the Streaming Reader, Match Engine, Pair Matcher and
// Validator Framework into three stages: a reader stage (the Reader's
// prefetch goroutine, blocking on I/O), a match stage (drives the Searcher
// over each Block, one goroutine), and a validation stage (a worker pool,
// one task per CarveCandidate). The reader prefetches at most one block
// ahead of the match stage. Run collects every match of the whole source
// before pairing, so validation starts only after searching has finished
// and a slow validation pool does not hold back the reader.
type Engine struct {
	cfg      *Config
	idx      pattern.IDIndex
	table    *pattern.StateTable
	validate validate.Validator
}

// NewEngine builds an Engine over cfg's FileTypes. It returns a
// *ConfigError if the file type set is internally inconsistent or
// contains a fingerprint collision (pattern.BuildIndex).
func NewEngine(cfg *Config, validator validate.Validator) (*Engine, error) {
	idx, err := pattern.BuildIndex(cfg.FileTypes)
	if err != nil {
		return nil, &ConfigError{Field: "file_types", Err: err}
	}

	builder := pattern.FromFileTypes(cfg.FileTypes)
	table, err := builder.Build()
	if err != nil {
		return nil, &ConfigError{Field: "file_types", Err: err}
	}

	return &Engine{cfg: cfg, idx: idx, table: table, validate: validator}, nil
}

// Run drives the full pipeline over src, sized by cfg.BlockSize with
// overlap derived from the registered pattern set, and returns every
// candidate's validation outcome ordered by header offset - the order
// writers need fragments reassembled in, even though validation itself
// may finish out of order across the worker pool.
//
// ctx is checked at every stage boundary (after each block is read, after
// each block is searched, before each validation job starts); cancelling
// it stops the pipeline promptly without waiting for in-flight I/O to
// finish processing the rest of the image.
func (e *Engine) Run(ctx context.Context, src ioblock.Source, concurrency int) ([]Result, error) {
	overlap := e.table.MaxPatternLength
	if overlap > 0 {
		overlap--
	}

	reader, err := ioblock.NewReader(src, e.cfg.BlockSize, overlap)
	if err != nil {
		return nil, &IOError{Op: "open-reader", Err: err}
	}

	searcher := e.newSearcher()

	length, err := src.Len()
	if err != nil {
		return nil, &IOError{Op: "stat", Err: err}
	}

	matchCh := make(chan search.RawMatch, 256)
	errCh := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go e.matchStage(ctx, reader, searcher, matchCh, errCh, &wg)

	go func() {
		wg.Wait()
		close(matchCh)
	}()

	var matches []search.RawMatch
	for m := range matchCh {
		matches = append(matches, m)
	}
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	candidates := pairing.Pair(matches, e.idx)

	results, err := e.validateStage(ctx, src, candidates, uint64(length), concurrency)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Candidate.HeaderOffset < results[j].Candidate.HeaderOffset
	})

	return results, nil
}

func (e *Engine) newSearcher() search.Searcher {
	if e.cfg.UseGPU {
		capacity := e.cfg.MaxMatchesPerDispatch
		if capacity <= 0 {
			capacity = DefaultMaxMatchesPerDispatch
		}
		return search.NewPFACSearcher(e.table, capacity, 0)
	}
	return search.NewSearcher(e.table)
}

// matchStage is the reader+match half of the pipeline: it pulls Blocks
// from reader (the blocking-I/O stage) and hands each to searcher in the
// same goroutine, since the Searcher interface requires strictly
// increasing contiguous blocks from a single driver - splitting reading
// and matching into two goroutines here would just add a handoff with no
// concurrency to show for it. The real concurrency boundary is between
// this combined stage and the validation worker pool downstream.
func (e *Engine) matchStage(ctx context.Context, reader *ioblock.Reader, searcher search.Searcher, out chan<- search.RawMatch, errCh chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		if ctx.Err() != nil {
			e.cfg.emit(Event{Kind: EventStageCancelled, Stage: "match"})
			errCh <- &ComputeError{Stage: "match", Err: ctx.Err()}
			return
		}

		block, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- &IOError{Op: "read-block", Err: err}
			return
		}
		e.cfg.emit(Event{Kind: EventBlockRead, BlockOffset: block.Offset, BlockLen: len(block.Data)})

		matches, err := searcher.Search(block.Data, block.Offset, block.Overlap)
		if err != nil {
			var overflow *search.MatchBufferOverflowError
			if !errors.As(err, &overflow) {
				errCh <- &ComputeError{Stage: "match", Err: err}
				return
			}
			// A dropped-match overflow degrades the run's recall but isn't
			// fatal; the matches the backend did manage to report are still
			// forwarded.
			e.cfg.emit(Event{Kind: EventDispatchOverflow, Dropped: overflow.Dropped})
		}

		for _, m := range matches {
			select {
			case out <- m:
			case <-ctx.Done():
				e.cfg.emit(Event{Kind: EventStageCancelled, Stage: "match"})
				errCh <- &ComputeError{Stage: "match", Err: ctx.Err()}
				return
			}
		}
	}
}

// validateStage runs one validation task per candidate across a worker
// pool of concurrency goroutines, reading each candidate's window directly
// from src (random access, unlike the sequential match stage) so workers
// never contend over a shared cursor.
func (e *Engine) validateStage(ctx context.Context, src ioblock.Source, candidates []pairing.CarveCandidate, streamLen uint64, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan pairing.CarveCandidate)
	results := make([]Result, 0, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, concurrency)

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				if ctx.Err() != nil {
					e.cfg.emit(Event{Kind: EventStageCancelled, Stage: "validate"})
					return
				}

				// TerminatorOffset is an inclusive last-byte index (the
				// same convention search.RawMatch.EndOffset uses), so the
				// window must run through and include it.
				end := cand.TerminatorOffset
				if streamLen > 0 && end > streamLen-1 {
					end = streamLen - 1
				}
				if end < cand.HeaderOffset {
					end = cand.HeaderOffset
				}
				window := make([]byte, end-cand.HeaderOffset+1)
				if n, err := src.ReadAt(window, int64(cand.HeaderOffset)); err != nil && err != io.EOF {
					select {
					case errCh <- &IOError{Op: "read-candidate", Err: err}:
					default:
					}
					return
				} else {
					window = window[:n]
				}

				v := e.validate.Validate(window, cand.HeaderOffset, cand, e.cfg.ClusterSize)
				e.cfg.emit(Event{Kind: EventCandidateValidated, Candidate: &cand, Validation: &v})

				mu.Lock()
				results = append(results, Result{Candidate: cand, Validation: v})
				mu.Unlock()
			}
		}()
	}

	for _, cand := range candidates {
		select {
		case jobs <- cand:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			e.cfg.emit(Event{Kind: EventStageCancelled, Stage: "validate"})
			return nil, &ComputeError{Stage: "validate", Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	return results, nil
}
