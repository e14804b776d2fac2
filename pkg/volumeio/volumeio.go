// Package volumeio reads and writes CT volumes as a YAML header plus a raw
// little-endian int16 sample file.
//
// A study named "s1" in directory dir is stored as:
//
//	dir/s1.yaml      dimensions, spacing, origin
//	dir/s1.raw       nx*ny*nz int16 samples, x fastest
//	dir/s1.mask.raw  optional nx*ny*nz uint8 lumen mask
package volumeio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"curvedmpr/internal/models"
)

var (
	// ErrStudyNotFound is returned when a study header does not exist
	ErrStudyNotFound = errors.New("study not found")

	// ErrInvalidStudyID is returned for identifiers that could escape the directory
	ErrInvalidStudyID = errors.New("invalid study id")
)

var studyIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// MaxVoxels is the largest sample count a header may declare
const MaxVoxels = 1 << 31

// Header is the YAML description of a stored volume
type Header struct {
	Dimensions [3]int     `yaml:"dimensions"`
	Spacing    [3]float64 `yaml:"spacing"`
	Origin     [3]float64 `yaml:"origin"`
}

// voxelCount returns the number of samples the header declares, rejecting
// non-positive dimensions and counts above MaxVoxels.
func (h *Header) voxelCount() (int64, error) {
	n := int64(1)
	for _, d := range h.Dimensions {
		if d <= 0 || int64(d) > MaxVoxels {
			return 0, fmt.Errorf("%w: dimensions %v", models.ErrInvalidVolume, h.Dimensions)
		}
		n *= int64(d)
		if n > MaxVoxels {
			return 0, fmt.Errorf("%w: dimensions %v exceed %d voxels", models.ErrInvalidVolume, h.Dimensions, MaxVoxels)
		}
	}
	return n, nil
}

// DirSource loads studies from a directory
type DirSource struct {
	Dir string
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

func (s *DirSource) path(studyID, ext string) (string, error) {
	if !studyIDPattern.MatchString(studyID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStudyID, studyID)
	}
	return filepath.Join(s.Dir, studyID+ext), nil
}

// ReadHeader loads the YAML header of a study
func (s *DirSource) ReadHeader(studyID string) (*Header, error) {
	path, err := s.path(studyID, ".yaml")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStudyNotFound, studyID)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse header %s: %w", path, err)
	}
	return &h, nil
}

// LoadVolume reads the header and raw samples of a study
func (s *DirSource) LoadVolume(ctx context.Context, studyID string) (*models.VolumeData, error) {
	h, err := s.ReadHeader(studyID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vol := &models.VolumeData{
		Dimensions: h.Dimensions,
		Spacing:    h.Spacing,
		Origin:     h.Origin,
	}
	n, err := h.voxelCount()
	if err != nil {
		return nil, err
	}

	path, _ := s.path(studyID, ".raw")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat samples: %w", err)
	}
	if info.Size() != 2*n {
		return nil, fmt.Errorf("%w: %s holds %d bytes, expected %d",
			models.ErrInvalidVolume, path, info.Size(), 2*n)
	}

	vol.Data = make([]int16, n)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, vol.Data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s holds fewer than %d samples", models.ErrInvalidVolume, path, n)
		}
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	return vol, nil
}

// LoadMask reads the optional lumen mask of a study. It returns nil and no
// error when the study has no mask.
func (s *DirSource) LoadMask(ctx context.Context, studyID string) (*models.SegmentationMask, error) {
	h, err := s.ReadHeader(studyID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := h.voxelCount()
	if err != nil {
		return nil, err
	}

	path, _ := s.path(studyID, ".mask.raw")
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat mask: %w", err)
	}
	if info.Size() != n {
		return nil, fmt.Errorf("%w: %s holds %d bytes, expected %d",
			models.ErrInvalidVolume, path, info.Size(), n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask: %w", err)
	}

	mask := &models.SegmentationMask{
		Dimensions: h.Dimensions,
		Spacing:    h.Spacing,
		Origin:     h.Origin,
		Data:       data,
	}
	if err := mask.Validate(); err != nil {
		return nil, err
	}
	return mask, nil
}

// WriteVolume stores vol, and mask when non-nil, under studyID in dir
func WriteVolume(dir, studyID string, vol *models.VolumeData, mask *models.SegmentationMask) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	s := NewDirSource(dir)
	headerPath, err := s.path(studyID, ".yaml")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	header, err := yaml.Marshal(Header{Dimensions: vol.Dimensions, Spacing: vol.Spacing, Origin: vol.Origin})
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if err := os.WriteFile(headerPath, header, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rawPath, _ := s.path(studyID, ".raw")
	f, err := os.Create(rawPath)
	if err != nil {
		return fmt.Errorf("failed to create samples file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, vol.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if mask != nil {
		if mask.Dimensions != vol.Dimensions {
			return fmt.Errorf("%w: mask dimensions %v differ from volume %v",
				models.ErrInvalidVolume, mask.Dimensions, vol.Dimensions)
		}
		maskPath, _ := s.path(studyID, ".mask.raw")
		if err := os.WriteFile(maskPath, mask.Data, 0644); err != nil {
			return fmt.Errorf("failed to write mask: %w", err)
		}
	}
	return nil
}
