// Package tracker drives one batch run: it resolves every request against
// the lookup service and merges each outcome into the record store.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/star/sattrack/internal/merge"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/n2yo"
	"github.com/star/sattrack/internal/record"
	"github.com/star/sattrack/internal/request"
)

// Fetcher performs one position lookup.
type Fetcher interface {
	Positions(ctx context.Context, req request.Request) (*n2yo.Response, error)
}

// Config holds run configuration loaded from environment variables.
type Config struct {
	Workers int // Concurrent fetch workers (default: 1, strictly sequential)
}

// Counters are the per-invocation totals.
type Counters struct {
	OK     int
	Failed int
}

// Attempt is the result of one request, with the record state it produced.
type Attempt struct {
	Request  request.Request
	Result   merge.Result
	Err      error
	Duration time.Duration

	CheckedAt int64
	SatName   *string
	FailCount int
	Decayed   bool
}

// Driver processes a batch of requests against a store.
type Driver struct {
	fetcher Fetcher
	pool    *WorkerPool
	config  Config
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock overrides the time source used to stamp attempts.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) {
		d.clock = clock
	}
}

// NewDriver creates a run driver.
func NewDriver(fetcher Fetcher, config Config, logger *slog.Logger, opts ...Option) *Driver {
	if config.Workers < 1 {
		config.Workers = 1
	}
	d := &Driver{
		fetcher: fetcher,
		pool:    NewWorkerPool(config.Workers, logger),
		config:  config,
		clock:   time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run merges one outcome per request into st and returns the run counters
// and one Attempt per request, in input order. If ctx is cancelled the run
// is aborted and ctx.Err() is returned; st must then not be persisted.
func (d *Driver) Run(ctx context.Context, st *record.Store, reqs []request.Request) (Counters, []Attempt, error) {
	now := d.clock()

	// Find-or-create in input order so new records are stored in the order
	// their ids first appear.
	recs := make([]*record.Record, len(reqs))
	ids := make([]string, len(reqs))
	for i, req := range reqs {
		rec, created := st.GetOrCreate(req.ID)
		if created {
			d.logger.Debug("new satellite record", "component", "tracker", "satellite_id", req.ID)
		}
		recs[i] = rec
		ids[i] = req.ID
	}

	attempts := make([]Attempt, len(reqs))
	process := func(i int) {
		attempts[i] = d.process(ctx, recs[i], reqs[i], now)
	}

	if d.config.Workers == 1 {
		for i := range reqs {
			if ctx.Err() != nil {
				break
			}
			process(i)
		}
	} else {
		d.pool.Run(ctx, groupByID(ids), process)
	}

	if err := ctx.Err(); err != nil {
		return Counters{}, nil, err
	}

	var c Counters
	for _, a := range attempts {
		if a.Result.Success() {
			c.OK++
		} else {
			c.Failed++
		}
	}
	metrics.SetRecordStates(st.Records())

	return c, attempts, nil
}

func (d *Driver) process(ctx context.Context, rec *record.Record, req request.Request, now time.Time) Attempt {
	start := time.Now()
	resp, err := d.fetcher.Positions(ctx, req)
	duration := time.Since(start)

	res := merge.Apply(rec, now, outcomeFor(resp, err))
	metrics.RecordFetch(res.Kind.String(), duration)

	log := d.logger.With(
		"component", "tracker",
		"satellite_id", req.ID,
		"line", req.Line,
		"outcome", res.Kind.String(),
		"fail_count", rec.FailCount,
	)
	switch {
	case res.Success():
		log.Debug("position merged", "duration_ms", duration.Milliseconds())
	case err != nil:
		log.Warn("lookup failed", "error", err)
	default:
		log.Warn("lookup returned no usable position")
	}
	if res.Decayed {
		log.Info("satellite decayed")
	}
	if res.Recovered {
		log.Info("satellite recovered")
	}

	return Attempt{
		Request:   req,
		Result:    res,
		Err:       err,
		Duration:  duration,
		CheckedAt: rec.LastChecked,
		SatName:   rec.SatName,
		FailCount: rec.FailCount,
		Decayed:   rec.Decayed,
	}
}

// outcomeFor maps a fetch result onto the merge outcome taxonomy.
func outcomeFor(resp *n2yo.Response, err error) merge.Outcome {
	switch {
	case err == nil && resp != nil:
		return merge.Observed(resp.Observation())
	case errors.Is(err, n2yo.ErrPayload):
		return merge.UnparsablePayload(err)
	case err == nil:
		return merge.UnparsablePayload(errors.New("empty response"))
	default:
		return merge.TransportFailure(err)
	}
}
