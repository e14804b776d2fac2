package restserver

import (
	"encoding/json"
	"errors"
	"image/jpeg"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"curvedmpr/internal/models"
	"curvedmpr/pkg/centerline"
	"curvedmpr/pkg/measurement"
	"curvedmpr/pkg/pipeline"
	"curvedmpr/pkg/resample"
	"curvedmpr/pkg/responseformat"
	"curvedmpr/pkg/visualization"
	"curvedmpr/pkg/volumeio"
)

// maxBodyBytes bounds request bodies; segmentations for a long vessel are
// the largest payloads
const maxBodyBytes = 256 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// CurvedMPRSummary describes a cached volume without its samples
type CurvedMPRSummary struct {
	Key         string                   `json:"key"`
	Cached      bool                     `json:"cached"`
	Dimensions  [3]int                   `json:"dimensions"`
	Spacing     [3]float64               `json:"spacing"`
	TotalLength float64                  `json:"totalLength"`
	Centerline  []models.CenterlinePoint `json:"centerline"`
	Validation  *models.ValidationReport `json:"validation,omitempty"`
}

// MeasureRequest carries one segmentation per slice
type MeasureRequest struct {
	Segmentations []models.CrossSectionSegmentation `json:"segmentations"`
}

func summarize(key string, vol *models.CurvedMPRVolume) CurvedMPRSummary {
	return CurvedMPRSummary{
		Key:         key,
		Dimensions:  vol.Dimensions,
		Spacing:     vol.Spacing,
		TotalLength: vol.TotalLength,
		Centerline:  vol.Centerline,
	}
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, centerline.ErrInsufficientControlPoints),
		errors.Is(err, centerline.ErrEmptyCenterline),
		errors.Is(err, centerline.ErrInvalidSamplingInterval),
		errors.Is(err, resample.ErrTooFewCenterlinePoints),
		errors.Is(err, measurement.ErrDimensionMismatch),
		errors.Is(err, measurement.ErrMissingWallMask),
		errors.Is(err, pipeline.ErrSliceCountMismatch),
		errors.Is(err, volumeio.ErrInvalidStudyID):
		return http.StatusBadRequest
	case errors.Is(err, volumeio.ErrStudyNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	h.formatter.WriteError(w, req, status, err.Error())
}

func (h *Handlers) decode(w http.ResponseWriter, req *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// cachedVolume looks up the volume named by the {key} route variable.
// Browsing does not count toward cache hit statistics.
func (h *Handlers) cachedVolume(w http.ResponseWriter, req *http.Request) (*models.CurvedMPRVolume, bool) {
	key := mux.Vars(req)["key"]
	vol, ok := h.controller.service.Cache().Peek(key)
	if !ok {
		h.formatter.WriteError(w, req, http.StatusNotFound, "curved MPR not found", key)
		return nil, false
	}
	return vol, true
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, map[string]string{"status": "ok"})
}

// ComputeCenterline fits and validates a centerline
func (h *Handlers) ComputeCenterline(w http.ResponseWriter, req *http.Request) {
	var r pipeline.Request
	if !h.decode(w, req, &r) {
		return
	}
	resp, err := h.controller.service.ComputeCenterline(req.Context(), r)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// ComputeCurvedMPR resamples a study along a fitted centerline and returns
// a summary. The samples are fetched per slice or view using the key.
func (h *Handlers) ComputeCurvedMPR(w http.ResponseWriter, req *http.Request) {
	var r pipeline.Request
	if !h.decode(w, req, &r) {
		return
	}
	res, err := h.controller.service.ComputeCurvedMPR(req.Context(), r, nil)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	summary := summarize(res.Key, res.Volume)
	summary.Cached = res.Cached
	summary.Validation = &res.Validation
	h.formatter.WriteResponse(w, req, http.StatusOK, summary)
}

// GetCurvedMPR returns the summary of a cached volume
func (h *Handlers) GetCurvedMPR(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	summary := summarize(mux.Vars(req)["key"], vol)
	summary.Cached = true
	h.formatter.WriteResponse(w, req, http.StatusOK, summary)
}

// GetSlice returns one cross section of a cached volume
func (h *Handlers) GetSlice(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(req)["index"])
	image, err := vol.Slice(index)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, err.Error())
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, image)
}

// GetView renders a cross section or longitudinal view as JPEG
func (h *Handlers) GetView(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	vars := mux.Vars(req)
	position, _ := strconv.Atoi(vars["position"])

	viewer := visualization.NewViewer(vol, h.controller.window)
	img, err := viewer.ExtractSlice(vars["axis"], position)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 90}); err != nil {
		h.controller.logger.Errorw("failed to encode view", "error", err)
	}
}

// Locate maps a posted world point onto the centerline of a cached volume.
// Location.Index is the slice nearest to the point.
func (h *Handlers) Locate(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	var p models.Point3D
	if !h.decode(w, req, &p) {
		return
	}
	loc, err := h.controller.service.Locate(vol, p)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, loc)
}

// MeasureSlice measures one cross section against the posted segmentation
func (h *Handlers) MeasureSlice(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	var seg models.CrossSectionSegmentation
	if !h.decode(w, req, &seg) {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(req)["index"])
	if index >= vol.NumSlices() {
		h.formatter.WriteError(w, req, http.StatusNotFound, "slice out of range")
		return
	}
	record, err := h.controller.service.MeasureSlice(vol, index, seg)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, record)
}

// MeasureCurvedMPR measures every cross section of a cached volume
func (h *Handlers) MeasureCurvedMPR(w http.ResponseWriter, req *http.Request) {
	vol, ok := h.cachedVolume(w, req)
	if !ok {
		return
	}
	var body MeasureRequest
	if !h.decode(w, req, &body) {
		return
	}
	records, err := h.controller.service.MeasureCurvedMPR(req.Context(), vol, body.Segmentations)
	if err != nil {
		h.fail(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, records)
}

// CacheStats reports result cache usage
func (h *Handlers) CacheStats(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, h.controller.service.Cache().Stats())
}

// ClearCache drops every cached volume
func (h *Handlers) ClearCache(w http.ResponseWriter, req *http.Request) {
	h.controller.service.Cache().Clear()
	w.WriteHeader(http.StatusNoContent)
}
