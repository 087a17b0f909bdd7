package router

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/partition"
	"github.com/voxellab/veldt/world"
)

// QueryResult is a dense result buffer covering every cell of the query
// box, addressed by the box's canonical linear index.
type QueryResult struct {
	Box    grid.Box
	Blocks []world.BlockTypeID
}

// At returns the value of a cell inside the result box.
func (r *QueryResult) At(p grid.Position) world.BlockTypeID {
	return r.Blocks[r.Box.Index(p)]
}

// aggregator collects the partial results of one range query. It is
// ephemeral: spawned with a fixed expected sub-box set, it lives until
// every expected partial result arrived (or the query failed) and is then
// discarded. The expected set never grows after spawn.
type aggregator struct {
	id       string
	box      grid.Box
	timeout  time.Duration
	expected map[grid.Box]struct{}
	received map[grid.Box]map[grid.Position]world.BlockTypeID
	results  chan partition.PartialResult
}

func newAggregator(box grid.Box, subs []grid.Box, timeout time.Duration) *aggregator {
	expected := make(map[grid.Box]struct{}, len(subs))
	for _, sub := range subs {
		expected[sub] = struct{}{}
	}

	instrumentAggregationStarted()
	return &aggregator{
		id:       uuid.New().String(),
		box:      box,
		timeout:  timeout,
		expected: expected,
		received: make(map[grid.Box]map[grid.Position]world.BlockTypeID, len(subs)),
		// Buffered to the expected count so no partition ever blocks on
		// a failed aggregation.
		results: make(chan partition.PartialResult, len(subs)),
	}
}

// collect waits for every expected partial result, then merges and
// returns the dense buffer. It never returns partial data: on timeout,
// cancellation, or protocol violation the whole query fails.
func (a *aggregator) collect(ctx context.Context) (*QueryResult, error) {
	defer instrumentAggregationDone()

	var timeoutChan <-chan time.Time
	if a.timeout > 0 {
		timer := time.NewTimer(a.timeout)
		defer timer.Stop()
		timeoutChan = timer.C
	}

	for len(a.received) < len(a.expected) {
		select {
		case <-ctx.Done():
			return nil, errors.New("query canceled").
				WithTag("query_id", a.id).
				Wrap(ctx.Err())

		case <-timeoutChan:
			instrumentQueryTimeout()
			return nil, errors.New("query timed out awaiting partial results").
				WithType(ErrTypeQueryTimeout).
				WithTag("query_id", a.id).
				WithTag("expected", len(a.expected)).
				WithTag("received", len(a.received)).
				WithTag("missing", a.missing())

		case res := <-a.results:
			if err := a.record(res); err != nil {
				return nil, err
			}
		}
	}

	return a.merge(), nil
}

// record stores one partial result. A result for a sub-box outside the
// expected set, or a second result for an already-answered sub-box, is a
// protocol violation and fails the aggregation; nothing is ever merged
// twice.
func (a *aggregator) record(res partition.PartialResult) error {
	if _, ok := a.expected[res.Sub]; !ok {
		instrumentProtocolViolation("unexpected_sub_box")
		return errors.New("partial result for unexpected sub-box").
			WithType(ErrTypeProtocolViolation).
			WithTag("query_id", a.id).
			WithTag("sub_box", res.Sub.String())
	}
	if _, ok := a.received[res.Sub]; ok {
		instrumentProtocolViolation("duplicate_sub_box")
		return errors.New("duplicate partial result for sub-box").
			WithType(ErrTypeProtocolViolation).
			WithTag("query_id", a.id).
			WithTag("sub_box", res.Sub.String())
	}
	if res.Err != nil {
		return errors.New("partition failed to answer sub-query").
			WithTag("query_id", a.id).
			WithTag("sub_box", res.Sub.String()).
			Wrap(res.Err)
	}

	a.received[res.Sub] = res.Blocks
	return nil
}

// merge assembles the dense buffer. The sub-boxes partition the query box,
// so every cell is written exactly once before the buffer is published.
func (a *aggregator) merge() *QueryResult {
	res := &QueryResult{
		Box:    a.box,
		Blocks: make([]world.BlockTypeID, a.box.Count()),
	}
	for sub, blocks := range a.received {
		sub.Each(func(p grid.Position) {
			res.Blocks[a.box.Index(p)] = blocks[p]
		})
	}
	return res
}

func (a *aggregator) missing() []string {
	var missing []string
	for sub := range a.expected {
		if _, ok := a.received[sub]; !ok {
			missing = append(missing, sub.String())
		}
	}
	return missing
}
