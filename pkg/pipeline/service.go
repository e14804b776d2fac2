// Package pipeline wires the centerline solver, result cache, curved MPR
// resampler and measurement engine into one service.
//
// A request flows control points -> centerline -> cache lookup -> curved MPR
// -> per-slice measurements. The cache sits between fitting and resampling:
// fitting is cheap and always runs, resampling is reused when the same
// geometry was already resampled for the same vessel and study.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/cache"
	"curvedmpr/pkg/centerline"
	"curvedmpr/pkg/config"
	"curvedmpr/pkg/measurement"
	"curvedmpr/pkg/resample"
)

var (
	// ErrInvalidConfig is returned by NewService for out-of-range settings
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSliceCountMismatch is returned when segmentations and slices differ in number
	ErrSliceCountMismatch = errors.New("segmentation count does not match slice count")
)

// VolumeSource loads CT volumes by study
type VolumeSource interface {
	LoadVolume(ctx context.Context, studyID string) (*models.VolumeData, error)
}

// MaskSource is implemented by sources that can also supply a lumen mask.
// A nil mask with a nil error means the study has none.
type MaskSource interface {
	LoadMask(ctx context.Context, studyID string) (*models.SegmentationMask, error)
}

// Request identifies a vessel path in a study
type Request struct {
	StudyID  string `json:"studyId"`
	VesselID string `json:"vesselId"`

	Start        models.ControlPoint   `json:"start"`
	End          models.ControlPoint   `json:"end"`
	Intermediate []models.ControlPoint `json:"intermediate,omitempty"`

	// UseMask classifies the centerline against the study's lumen mask
	UseMask bool `json:"useMask,omitempty"`

	// Spacing, when positive, resamples the returned centerline to points
	// every Spacing mm. Curved MPR always follows the fitted samples.
	Spacing float64 `json:"spacing,omitempty"`
}

// ControlPoints returns start, intermediate and end in order
func (r Request) ControlPoints() []models.ControlPoint {
	pts := make([]models.ControlPoint, 0, len(r.Intermediate)+2)
	pts = append(pts, r.Start)
	pts = append(pts, r.Intermediate...)
	return append(pts, r.End)
}

// CenterlineResponse is a fitted centerline and its plausibility report
type CenterlineResponse struct {
	Centerline *models.CenterlineResult `json:"centerline"`
	Validation models.ValidationReport  `json:"validation"`
}

// CurvedMPRResult is a resampled volume with the centerline it follows
type CurvedMPRResult struct {
	CenterlineResponse

	// Key is the cache key of the volume
	Key    string                  `json:"key"`
	Volume *models.CurvedMPRVolume `json:"volume"`
	Cached bool                    `json:"cached"`
}

// Service runs the pipeline. It is safe for concurrent use.
type Service struct {
	solver    *centerline.Solver
	limits    centerline.Limits
	resampler *resample.Resampler
	engine    *measurement.Engine
	cache     *cache.ResultCache
	source    VolumeSource
	workers   int
	logger    *zap.SugaredLogger
}

// NewService builds a service from cfg. The configuration is validated
// first and every range problem is reported in the returned error.
func NewService(cfg *config.Config, source VolumeSource, logger *zap.SugaredLogger) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if report := cfg.Validate(); !report.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(report.Errors, "; "))
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	param, err := centerline.ParseParameterization(cfg.Centerline.Parameterization)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	interp, ok := resample.ParseInterpolation(cfg.Resampling.Interpolation)
	if !ok {
		return nil, fmt.Errorf("%w: unknown interpolation %q", ErrInvalidConfig, cfg.Resampling.Interpolation)
	}

	up := cfg.Resampling.InitialUp
	resampler := resample.NewResampler(resample.Config{
		PlaneWidth:       cfg.Resampling.PlaneWidth,
		PlaneHeight:      cfg.Resampling.PlaneHeight,
		PlaneResolution:  cfg.Resampling.PlaneResolution,
		SamplingInterval: cfg.Centerline.SamplingInterval,
		Interpolation:    interp,
		InitialUp:        r3.Vec{X: up[0], Y: up[1], Z: up[2]},
		PreviewFactor:    cfg.Resampling.PreviewFactor,
		Workers:          cfg.Resampling.Workers,
	}, logger.Named("resample"))

	return &Service{
		solver: centerline.NewSolver(centerline.Config{
			Degree:           cfg.Centerline.Degree,
			SamplingInterval: cfg.Centerline.SamplingInterval,
			Parameterization: param,
		}),
		limits: centerline.Limits{
			MinLength:            cfg.Validation.MinLength,
			MaxLength:            cfg.Validation.MaxLength,
			MaxTurnAngle:         cfg.Validation.MaxTurnAngle,
			MaxDeviationFraction: cfg.Validation.MaxDeviationFraction,
		},
		resampler: resampler,
		engine: measurement.NewEngine(measurement.Config{
			CalciumThreshold: cfg.Measurement.CalciumThreshold,
			DiameterAngles:   cfg.Measurement.DiameterAngles,
			MinValidArea:     cfg.Measurement.MinValidArea,
		}),
		cache:   cache.New(cfg.CacheMemoryBytes(), cfg.Cache.MaxEntries, logger.Named("cache")),
		source:  source,
		workers: resampler.Config().Workers,
		logger:  logger,
	}, nil
}

// Cache exposes the result cache for inspection and clearing
func (s *Service) Cache() *cache.ResultCache {
	return s.cache
}

// Engine returns the measurement engine
func (s *Service) Engine() *measurement.Engine {
	return s.engine
}

// ComputeCenterline fits and validates a centerline. When the request asks
// for it and the source can supply one, the study's lumen mask is used.
func (s *Service) ComputeCenterline(ctx context.Context, req Request) (*CenterlineResponse, error) {
	var mask *models.SegmentationMask
	if req.UseMask {
		ms, ok := s.source.(MaskSource)
		if !ok {
			return nil, errors.New("volume source cannot supply lumen masks")
		}
		var err error
		if mask, err = ms.LoadMask(ctx, req.StudyID); err != nil {
			return nil, fmt.Errorf("failed to load lumen mask: %w", err)
		}
	}

	result, err := s.solver.Solve(req.Start, req.End, req.Intermediate, mask)
	if err != nil {
		return nil, err
	}
	report := centerline.Validate(result, s.limits)
	if !report.Valid {
		s.logger.Infow("centerline failed validation",
			"study", req.StudyID, "vessel", req.VesselID, "errors", report.Errors)
	}
	if req.Spacing > 0 {
		if result, err = centerline.Resample(result, req.Spacing); err != nil {
			return nil, err
		}
	}
	return &CenterlineResponse{Centerline: result, Validation: report}, nil
}

// Locate maps a world point to the nearest position on the centerline of
// vol and the slice closest to it
func (s *Service) Locate(vol *models.CurvedMPRVolume, p models.Point3D) (centerline.Location, error) {
	if vol == nil || len(vol.Centerline) == 0 {
		return centerline.Location{}, centerline.ErrEmptyCenterline
	}
	loc, err := centerline.NewLocator(&models.CenterlineResult{
		Points:      vol.Centerline,
		TotalLength: vol.Centerline[len(vol.Centerline)-1].Distance,
	})
	if err != nil {
		return centerline.Location{}, err
	}
	return loc.Locate(p), nil
}

// ComputeCurvedMPR fits the centerline and returns the resampled volume,
// reusing a cached volume for identical geometry. onPreview, when non-nil,
// receives a coarse preview before the full volume is computed; it is not
// called on a cache hit.
func (s *Service) ComputeCurvedMPR(ctx context.Context, req Request, onPreview func(*models.CurvedMPRVolume)) (*CurvedMPRResult, error) {
	req.Spacing = 0
	cl, err := s.ComputeCenterline(ctx, req)
	if err != nil {
		return nil, err
	}

	key := cache.GenerateCurveKey(req.ControlPoints(), req.UseMask, req.VesselID, req.StudyID)

	out := &CurvedMPRResult{CenterlineResponse: *cl, Key: key}
	if vol, ok := s.cache.Get(key); ok {
		s.logger.Debugw("curved MPR cache hit", "key", key)
		out.Volume = vol
		out.Cached = true
		return out, nil
	}

	if s.source == nil {
		return nil, errors.New("no volume source configured")
	}
	volume, err := s.source.LoadVolume(ctx, req.StudyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load volume: %w", err)
	}

	start := time.Now()
	var vol *models.CurvedMPRVolume
	if onPreview != nil {
		vol, err = s.resampler.ResampleProgressive(ctx, volume, cl.Centerline.Points, onPreview)
	} else {
		vol, err = s.resampler.Resample(ctx, volume, cl.Centerline.Points)
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(key, vol); err != nil {
		// Too large to cache is not fatal
		s.logger.Warnw("curved MPR not cached", "key", key, "error", err)
	}
	s.logger.Infow("computed curved MPR",
		"study", req.StudyID, "vessel", req.VesselID, "key", key,
		"slices", vol.NumSlices(), "elapsed", time.Since(start))

	out.Volume = vol
	return out, nil
}

// MeasureCurvedMPR measures every slice of vol against its segmentation.
// segs must hold one segmentation per slice. Slices are measured in
// parallel; records are returned in slice order.
func (s *Service) MeasureCurvedMPR(ctx context.Context, vol *models.CurvedMPRVolume, segs []models.CrossSectionSegmentation) ([]*models.MeasurementRecord, error) {
	if vol == nil {
		return nil, errors.New("nil curved MPR volume")
	}
	if len(segs) != vol.NumSlices() {
		return nil, fmt.Errorf("%w: %d segmentations for %d slices", ErrSliceCountMismatch, len(segs), vol.NumSlices())
	}

	records := make([]*models.MeasurementRecord, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range segs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			image, err := vol.Slice(i)
			if err != nil {
				return err
			}
			position := 0.0
			if i < len(vol.Centerline) {
				position = vol.Centerline[i].Distance
			}
			rec, err := s.engine.ComputeAll(image, segs[i], position)
			if err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// MeasureSlice measures one slice of vol
func (s *Service) MeasureSlice(vol *models.CurvedMPRVolume, index int, seg models.CrossSectionSegmentation) (*models.MeasurementRecord, error) {
	image, err := vol.Slice(index)
	if err != nil {
		return nil, err
	}
	position := 0.0
	if index < len(vol.Centerline) {
		position = vol.Centerline[index].Distance
	}
	return s.engine.ComputeAll(image, seg, position)
}
