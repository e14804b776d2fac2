// Package resample builds straightened curved MPR volumes by sampling
// planes perpendicular to a centerline.
package resample

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/vecmath"
)

// ErrTooFewCenterlinePoints is returned when fewer than two points are given
var ErrTooFewCenterlinePoints = errors.New("at least 2 centerline points are required")

// Config describes the sampling plane and how it is filled
type Config struct {
	PlaneWidth      float64 // mm
	PlaneHeight     float64 // mm
	PlaneResolution float64 // mm per pixel

	// SamplingInterval is reported as the slice spacing. When zero the mean
	// spacing of the supplied points is used.
	SamplingInterval float64

	Interpolation Interpolation

	// InitialUp seeds the orientation of the first plane
	InitialUp r3.Vec

	// PreviewFactor divides the in-plane resolution of progressive previews
	PreviewFactor int

	// Workers bounds the number of slices sampled concurrently
	Workers int
}

// DefaultConfig returns a 20x20mm plane at 0.5mm with trilinear sampling
func DefaultConfig() Config {
	return Config{
		PlaneWidth:      20,
		PlaneHeight:     20,
		PlaneResolution: 0.5,
		Interpolation:   Trilinear,
		InitialUp:       vecmath.AxisZ,
		PreviewFactor:   4,
		Workers:         runtime.NumCPU(),
	}
}

// PlaneSize returns the pixel dimensions of a plane sampled at res
func (c Config) PlaneSize(res float64) (int, int) {
	w := int(math.Ceil(c.PlaneWidth / res))
	h := int(math.Ceil(c.PlaneHeight / res))
	return max(w, 1), max(h, 1)
}

func (c Config) validate() error {
	if !(c.PlaneWidth > 0) || !(c.PlaneHeight > 0) {
		return fmt.Errorf("plane size must be positive, got %gx%g mm", c.PlaneWidth, c.PlaneHeight)
	}
	if !(c.PlaneResolution > 0) {
		return fmt.Errorf("plane resolution must be positive, got %g", c.PlaneResolution)
	}
	return nil
}

// Resampler produces curved MPR volumes. It is safe for concurrent use.
type Resampler struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewResampler creates a resampler. A nil logger disables logging.
func NewResampler(cfg Config, logger *zap.SugaredLogger) *Resampler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PreviewFactor <= 0 {
		cfg.PreviewFactor = 1
	}
	return &Resampler{cfg: cfg, logger: logger}
}

// Config returns the resampler configuration
func (r *Resampler) Config() Config {
	return r.cfg
}

// Resample samples one plane per centerline point. Frames are built in
// order, then slices are filled concurrently.
func (r *Resampler) Resample(ctx context.Context, volume *models.VolumeData, points []models.CenterlinePoint) (*models.CurvedMPRVolume, error) {
	return r.resample(ctx, volume, points, r.cfg.PlaneResolution, r.cfg.Interpolation)
}

// ResampleProgressive first produces a coarse nearest-neighbour preview,
// hands it to onPreview, then produces the full-resolution volume.
func (r *Resampler) ResampleProgressive(ctx context.Context, volume *models.VolumeData, points []models.CenterlinePoint, onPreview func(*models.CurvedMPRVolume)) (*models.CurvedMPRVolume, error) {
	if r.cfg.PreviewFactor > 1 {
		preview, err := r.resample(ctx, volume, points, r.cfg.PlaneResolution*float64(r.cfg.PreviewFactor), Nearest)
		if err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
		if onPreview != nil {
			onPreview(preview)
		}
	}
	return r.Resample(ctx, volume, points)
}

func (r *Resampler) resample(ctx context.Context, volume *models.VolumeData, points []models.CenterlinePoint, res float64, interp Interpolation) (*models.CurvedMPRVolume, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewCenterlinePoints, len(points))
	}
	if volume == nil {
		return nil, fmt.Errorf("%w: nil volume", models.ErrInvalidVolume)
	}
	if err := volume.Validate(); err != nil {
		return nil, err
	}
	if err := r.cfg.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	w, h := r.cfg.PlaneSize(res)
	n := len(points)
	sliceSize := w * h

	up := r.cfg.InitialUp
	if vecmath.IsDegenerate(up) {
		up = vecmath.AxisZ
	}
	frames := BuildFrames(points, up)

	out := &models.CurvedMPRVolume{
		Dimensions:  [3]int{w, h, n},
		Spacing:     [3]float64{res, res, r.sliceSpacing(points)},
		Data:        make([]int16, sliceSize*n),
		Centerline:  append([]models.CenterlinePoint(nil), points...),
		TotalLength: points[n-1].Distance - points[0].Distance,
	}

	sample := interp.sampler()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fillPlane(out.Data[i*sliceSize:(i+1)*sliceSize], volume, frames[i], w, h, res, sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Debugw("resampled curved MPR",
		"slices", n, "width", w, "height", h,
		"resolution", res, "interpolation", interp.String(),
		"elapsed", time.Since(start))
	return out, nil
}

func (r *Resampler) sliceSpacing(points []models.CenterlinePoint) float64 {
	if r.cfg.SamplingInterval > 0 {
		return r.cfg.SamplingInterval
	}
	n := len(points)
	return (points[n-1].Distance - points[0].Distance) / float64(n-1)
}

// fillPlane samples a w x h grid centred on the frame origin. Row 0 lies on
// the +Up side; column 0 on the -Right side.
func fillPlane(dst []int16, volume *models.VolumeData, f Frame, w, h int, res float64, sample SampleFunc) {
	halfW := float64(w) / 2
	halfH := float64(h) / 2
	for j := 0; j < h; j++ {
		v := (halfH - float64(j) - 0.5) * res
		row := r3.Add(f.Origin, r3.Scale(v, f.Up))
		for i := 0; i < w; i++ {
			u := (float64(i) + 0.5 - halfW) * res
			p := r3.Add(row, r3.Scale(u, f.Right))
			dst[j*w+i] = sample(volume, p)
		}
	}
}
