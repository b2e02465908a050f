package perf

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

/*
Tracks timing for one unit of work: an HTTP request, a CLI command, or a
single post merge. Work is split into nested blocks; SQL queries get their
own blocks automatically through the database tracer.
*/
type RequestPerf struct {
	Route  string
	Path   string // the path actually matched
	Method string
	Start  time.Time
	End    time.Time
	Blocks []PerfBlock
}

func MakeNewRequestPerf(route string, method string, path string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Path:   path,
		Method: method,
	}
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}
	for rp.EndBlock() {
	}
	rp.End = time.Now()
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	if rp == nil {
		return
	}
	now := time.Now()
	checkpoint := PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	}
	rp.Blocks = append(rp.Blocks, checkpoint)
}

func (rp *RequestPerf) StartBlock(category, description string) *BlockHandle {
	if rp == nil {
		return nil
	}
	now := time.Now()
	checkpoint := PerfBlock{
		Start:       now,
		End:         time.Time{},
		Category:    category,
		Description: description,
	}
	rp.Blocks = append(rp.Blocks, checkpoint)
	return &BlockHandle{rp: rp, index: len(rp.Blocks) - 1}
}

// Ends the most recently started block that is still open.
func (rp *RequestPerf) EndBlock() bool {
	if rp == nil {
		return false
	}
	for i := len(rp.Blocks) - 1; i >= 0; i -= 1 {
		if rp.Blocks[i].End.Equal(time.Time{}) {
			rp.Blocks[i].End = time.Now()
			return true
		}
	}
	return false
}

func (rp *RequestPerf) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(rp.Start).Nanoseconds()) / 1000 / 1000
}

// Sums the duration of every finished block, by category.
func (rp *RequestPerf) CategoryTotals() map[string]time.Duration {
	totals := make(map[string]time.Duration)
	if rp == nil {
		return totals
	}
	for _, block := range rp.Blocks {
		if block.End.IsZero() {
			continue
		}
		totals[block.Category] += block.Duration()
	}
	return totals
}

// Adds a perf summary to a log event: total duration and one field per block
// of the given category, in milliseconds.
func (rp *RequestPerf) MarshalBlocks(e *zerolog.Event, category string) *zerolog.Event {
	if rp == nil {
		return e
	}
	dict := zerolog.Dict()
	for _, block := range rp.Blocks {
		if block.Category == category && !block.End.IsZero() {
			dict = dict.Float64(block.Description, block.DurationMs())
		}
	}
	return e.Dict("perf", dict.Float64("total", float64(rp.End.Sub(rp.Start).Nanoseconds())/1000/1000))
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

// Ends one specific block, regardless of what has been started since.
type BlockHandle struct {
	rp    *RequestPerf
	index int
}

func (h *BlockHandle) End() {
	if h == nil {
		return
	}
	if block := &h.rp.Blocks[h.index]; block.End.IsZero() {
		block.End = time.Now()
	}
}

type perfContextKey struct{}

func AttachPerf(ctx context.Context, perf *RequestPerf) context.Context {
	return context.WithValue(ctx, perfContextKey{}, perf)
}

// Returns the perf tracker attached to ctx. The result may be nil; every
// method on a nil *RequestPerf is a no-op.
func ExtractPerf(ctx context.Context) *RequestPerf {
	iperf := ctx.Value(perfContextKey{})
	if iperf == nil {
		return nil
	}
	return iperf.(*RequestPerf)
}
