// Package supervisor implements the abortable generation supervisor of
// spec §4.7: it bridges an upstream token stream to a downstream byte
// stream, interposing the key-detection processor and the streaming
// extractor, and aborts on fatal errors or a buffer overrun.
package supervisor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/loopforge/jsonguard/extractor"
	"github.com/loopforge/jsonguard/generr"
	"github.com/loopforge/jsonguard/internal/ringbuffer"
	"github.com/loopforge/jsonguard/internal/streams"
	"github.com/loopforge/jsonguard/processor"
	"github.com/loopforge/jsonguard/tokenizer"
)

// DefaultBufferCap is spec §4.7's default cumulative buffer cap (30000
// bytes of JSON-emitted text).
const DefaultBufferCap = 30000

// Step is one diagnostic trail entry, adapted from the teacher's
// ringbuffer.RingBuffer[T] (originally a latency/metric ring buffer) into
// a small "what was happening right before the abort" record.
type Step struct {
	Position   int
	Phase      string
	BytesSoFar int
}

// Supervisor owns the processor, extractor and diagnostic trail for one
// generation (spec §3 lifecycles: per-generation, destroyed with the
// task).
type Supervisor struct {
	tk        tokenizer.Tokenizer
	proc      *processor.Processor
	ext       *extractor.Extractor
	bufferCap int
	trail     *ringbuffer.RingBuffer[Step]
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithBufferCap overrides DefaultBufferCap.
func WithBufferCap(n int) Option {
	return func(s *Supervisor) { s.bufferCap = n }
}

// WithTrailCapacity overrides the diagnostic ring buffer's capacity
// (default 16 steps).
func WithTrailCapacity(n int) Option {
	return func(s *Supervisor) { s.trail = ringbuffer.New[Step](n) }
}

func New(tk tokenizer.Tokenizer, proc *processor.Processor, ext *extractor.Extractor, opts ...Option) *Supervisor {
	s := &Supervisor{
		tk:        tk,
		proc:      proc,
		ext:       ext,
		bufferCap: DefaultBufferCap,
		trail:     ringbuffer.New[Step](16),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Trail returns a snapshot of the diagnostic trail, most useful once Run's
// returned stream has ended in an error.
func (s *Supervisor) Trail() []ringbuffer.Item[Step] {
	return s.trail.GetAll()
}

type chunkResult struct {
	data []byte
	err  error
}

// Run pumps upstream (the sampled-token stream) through the processor and
// extractor on a dedicated goroutine and returns a downstream byte stream.
// Cancelling the context, or calling Close on the returned stream, aborts
// the upstream pump within one yield boundary (spec §5).
func (s *Supervisor) Run(ctx context.Context, upstream streams.Stream[tokenizer.ID]) streams.Stream[[]byte] {
	ctx, cancel := context.WithCancel(ctx)

	out := make(chan chunkResult, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(out)

		return s.pump(gctx, upstream, out)
	})

	return &downstream{ctx: ctx, cancel: cancel, out: out, wait: g.Wait}
}

func (s *Supervisor) pump(ctx context.Context, upstream streams.Stream[tokenizer.ID], out chan<- chunkResult) error {
	bufferUsed := 0

	for upstream.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		id := upstream.Current()

		if err := s.proc.DidSample(ctx, id); err != nil {
			return s.deliver(ctx, out, chunkResult{err: err})
		}

		text, err := s.tk.Decode([]tokenizer.ID{id})
		if err != nil {
			return s.deliver(ctx, out, chunkResult{err: err})
		}

		emitted := s.ext.Feed([]byte(text))
		bufferUsed += len(emitted)

		s.trail.Push(int64(s.proc.Position()), Step{
			Position:   s.proc.Position(),
			Phase:      s.proc.CurrentPhase().String(),
			BytesSoFar: bufferUsed,
		})

		if s.proc.HasFatalError() {
			abortErr := generr.AbortedDueToError(s.proc.Position())
			return s.deliver(ctx, out, chunkResult{err: abortErr})
		}

		if bufferUsed > s.bufferCap {
			bufErr := generr.New(generr.KindBufferLimitExceeded)
			return s.deliver(ctx, out, chunkResult{err: bufErr})
		}

		if len(emitted) == 0 {
			continue
		}

		select {
		case out <- chunkResult{data: emitted}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return upstream.Err()
}

func (s *Supervisor) deliver(ctx context.Context, out chan<- chunkResult, r chunkResult) error {
	select {
	case out <- r:
	case <-ctx.Done():
	}

	if r.err != nil {
		return r.err
	}

	return nil
}

// downstream implements streams.Stream[[]byte] over the pump's channel.
type downstream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	out     chan chunkResult
	wait    func() error
	current []byte
	err     error
}

func (d *downstream) Next() bool {
	r, ok := <-d.out
	if !ok {
		return false
	}

	if r.err != nil {
		d.err = r.err
		return false
	}

	d.current = r.data

	return true
}

func (d *downstream) Current() []byte { return d.current }

func (d *downstream) Err() error {
	if d.err != nil {
		return d.err
	}

	return d.wait()
}

func (d *downstream) Close() error {
	d.cancel()

	for range d.out {
		// drain so the pump goroutine's send does not block forever.
	}

	return nil
}
