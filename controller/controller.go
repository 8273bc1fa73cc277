// Package controller - Per-stream pipeline routing frames from a detector through the tracker.
package controller

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mot/models/postprocess"
	"github.com/nvr-ai/go-mot/tracking"
)

// Frame is a single frame of video.
type Frame struct {
	ID        int
	Image     image.Image
	Timestamp time.Time
}

// Size returns the pixel dimensions of the frame image, or zero when the
// frame carries no image.
func (f Frame) Size() (width, height int) {
	if f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Detector is an interface for a detector.
type Detector interface {
	// Detect returns pixel-space results for the frame.
	Detect(ctx context.Context, frame Frame) ([]postprocess.Result, error)
	Name() string
}

// Sink receives the tracks emitted for every processed frame.
type Sink interface {
	WriteFrame(ctx context.Context, frame int, tracks []tracking.TrackedBbox) error
}

// Step is the outcome of one processed frame.
type Step struct {
	Frame      int
	Detections int
	Tracks     []tracking.TrackedBbox
	Density    DensityMetrics
	Elapsed    time.Duration
}

// Options configures a Controller.
type Options struct {
	// Tracker parameters.
	Tracker tracking.Config
	// NMS applied to detector results before tracking. Nil disables it.
	NMS *postprocess.NMSConfig
	// Classes kept from the detector output. Empty keeps every class.
	Classes []int
	// Density configures the per-frame scene summary.
	Density DensityConfig
	// Sink optionally receives every step's tracks.
	Sink   Sink
	Logger *slog.Logger
}

// Controller runs Detector → NMS → Tracker → Sink for one stream.
//
// A Controller owns its tracker and is not safe for concurrent use; run one
// controller per camera.
type Controller struct {
	detector Detector
	tracker  *tracking.Tracker
	density  *DensityEstimator
	opts     Options
	logger   *slog.Logger
}

// New creates a controller around detector.
//
// Arguments:
//   - detector: The detector producing pixel-space results.
//   - opts: Pipeline options.
//
// Returns:
//   - *Controller: The controller.
//   - error: An error if detector is nil.
func New(detector Detector, opts Options) (*Controller, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("detector", detector.Name()))

	return &Controller{
		detector: detector,
		tracker:  tracking.New(opts.Tracker, tracking.WithLogger(logger)),
		density:  NewDensityEstimator(opts.Density),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Step processes one frame.
//
// Arguments:
//   - ctx: Cancels the step before detection starts.
//   - frame: The frame to process. Its image size normalizes detector boxes.
//
// Returns:
//   - Step: The tracks emitted for the frame and a density summary.
//   - error: An error if the context is done, the frame has no image, the
//     detector fails or the sink rejects the tracks.
func (c *Controller) Step(ctx context.Context, frame Frame) (Step, error) {
	if err := ctx.Err(); err != nil {
		return Step{}, errors.Wrap(err, "step cancelled")
	}

	width, height := frame.Size()
	if width == 0 || height == 0 {
		return Step{}, errors.Errorf("frame %d has no image", frame.ID)
	}

	start := time.Now()
	results, err := c.detector.Detect(ctx, frame)
	if err != nil {
		return Step{}, errors.Wrapf(err, "detect frame %d", frame.ID)
	}
	if c.opts.NMS != nil {
		results = postprocess.Suppress(results, c.opts.NMS)
	}

	detections := postprocess.ToDetections(results, width, height, c.opts.Classes...)
	tracks := c.tracker.Process(detections)

	step := Step{
		Frame:      c.tracker.Frame(),
		Detections: len(detections),
		Tracks:     tracks,
		Density:    c.density.Estimate(tracks),
		Elapsed:    time.Since(start),
	}

	if c.opts.Sink != nil {
		if err := c.opts.Sink.WriteFrame(ctx, step.Frame, tracks); err != nil {
			return step, errors.Wrapf(err, "sink frame %d", step.Frame)
		}
	}

	c.logger.Debug("step",
		slog.Int("frame", step.Frame),
		slog.Int("detections", step.Detections),
		slog.Int("tracks", len(tracks)),
		slog.Duration("elapsed", step.Elapsed),
	)
	return step, nil
}

// Reset starts a new, unrelated sequence.
func (c *Controller) Reset() {
	c.logger.Info("resetting tracker", slog.Int("frame", c.tracker.Frame()), slog.Int("tracks", c.tracker.Len()))
	c.tracker.Reset()
}

// Tracker exposes the controller's tracker for inspection.
func (c *Controller) Tracker() *tracking.Tracker {
	return c.tracker
}
