// Package encoder implements the encoder worker (spec §4.4): an
// in-process channel that many request-listener goroutines submit to and a
// single Run loop drains, turning a raw image payload into stego-encoded
// bytes without ever crashing the replica on a bad input.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/metrics"
	"github.com/mostafa-ds/pixeldos/rights"
	"github.com/mostafa-ds/pixeldos/stego"
)

// DefaultAllowedViews seeds every freshly encoded image's access-rights
// counter; owners grant additional views explicitly afterwards.
const DefaultAllowedViews = 1

// Job is one encode request submitted to the worker.
type Job struct {
	RawImage []byte
	Result   chan<- Result
}

// Result is the outcome of one Job.
type Result struct {
	Encoded []byte
	Err     error
}

// Worker owns the canned background image (loaded once, shared read-only,
// per spec §5 "Resource lifecycle") and serializes encode requests from an
// input channel.
type Worker struct {
	background image.Image
	jobs       chan Job
	log        log.Logger
	metrics    *metrics.Registry
}

// New constructs a Worker. background is shared read-only and never
// mutated; cmd/server passes a generated canvas, and DecodeBackground turns
// PNG bytes into a suitable image.
func New(background image.Image, queueDepth int, logger log.Logger, reg *metrics.Registry) *Worker {
	return &Worker{
		background: background,
		jobs:       make(chan Job, queueDepth),
		log:        logger,
		metrics:    reg,
	}
}

// Jobs returns the channel the request listener submits work to.
func (w *Worker) Jobs() chan<- Job { return w.jobs }

// Run drains jobs until ctx is cancelled. Each job's own failure is
// reported on its Result channel and never propagated further (spec §4.4,
// §7 "Fatal local").
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			job.Result <- w.encode(job.RawImage)
		}
	}
}

func (w *Worker) encode(raw []byte) Result {
	encoded, err := stego.Embed(raw, w.background)
	if err != nil {
		w.metrics.EncodeFailure.Inc()
		w.log.Warn("stego embed failed", zap.Error(err))
		return Result{Err: fmt.Errorf("encoder: embed: %w", err)}
	}

	if err := rights.Embed(encoded, DefaultAllowedViews); err != nil {
		w.metrics.EncodeFailure.Inc()
		w.log.Warn("rights embed failed", zap.Error(err))
		return Result{Err: fmt.Errorf("encoder: rights: %w", err)}
	}

	out, err := stego.EncodePNG(encoded)
	if err != nil {
		w.metrics.EncodeFailure.Inc()
		w.log.Warn("png encode failed", zap.Error(err))
		return Result{Err: fmt.Errorf("encoder: png: %w", err)}
	}

	w.metrics.EncodeSuccess.Inc()
	return Result{Encoded: out}
}

// Submit enqueues raw for encoding and blocks for the result. Safe to call
// concurrently from many request-listener goroutines.
func (w *Worker) Submit(ctx context.Context, raw []byte) ([]byte, error) {
	result := make(chan Result, 1)
	select {
	case w.jobs <- Job{RawImage: raw, Result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-result:
		return r.Encoded, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DecodeBackground is a small convenience that decodes PNG bytes into a
// background image for New. cmd/server does not call it: it synthesizes its
// background instead.
func DecodeBackground(pngBytes []byte) (image.Image, error) {
	return stego.DecodePNG(bytes.NewReader(pngBytes))
}
