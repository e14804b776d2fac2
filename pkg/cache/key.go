package cache

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"curvedmpr/internal/models"
)

// KeyPrecision is the number of decimals coordinates are rounded to before
// hashing. Points closer than this collapse to the same key.
const KeyPrecision = 2

// GenerateKey derives a cache key from the ordered input points and the
// vessel and study identifiers. The key is the 32-bit FNV-1a hash of the
// rounded coordinates as 8 hex digits. Point order matters.
func GenerateKey(points []models.Point3D, vesselID, studyID string) string {
	var b strings.Builder
	for _, p := range points {
		writePoint(&b, p)
		b.WriteByte(';')
	}
	return hashKey(&b, vesselID, studyID)
}

// GenerateCurveKey keys a fitted curve by its control points. A weight other
// than 1 is added to its point's segment and a lumen-centered fit gets its own
// suffix. Unweighted, uncentered input yields the same key as GenerateKey.
func GenerateCurveKey(points []models.ControlPoint, lumenCentered bool, vesselID, studyID string) string {
	var b strings.Builder
	for _, p := range points {
		writePoint(&b, p.Point3D)
		if w := formatCoord(p.EffectiveWeight()); w != formatCoord(1) {
			b.WriteByte(',')
			b.WriteString(w)
		}
		b.WriteByte(';')
	}
	if lumenCentered {
		b.WriteString("lumen")
	}
	return hashKey(&b, vesselID, studyID)
}

func writePoint(b *strings.Builder, p models.Point3D) {
	b.WriteString(formatCoord(p.X))
	b.WriteByte(',')
	b.WriteString(formatCoord(p.Y))
	b.WriteByte(',')
	b.WriteString(formatCoord(p.Z))
}

func hashKey(b *strings.Builder, vesselID, studyID string) string {
	b.WriteByte('|')
	b.WriteString(vesselID)
	b.WriteByte('|')
	b.WriteString(studyID)

	h := fnv.New32a()
	_, _ = h.Write([]byte(b.String())) // fnv.Write never returns an error
	return fmt.Sprintf("%08x", h.Sum32())
}

func formatCoord(v float64) string {
	scale := math.Pow10(KeyPrecision)
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // fold -0
	}
	return strconv.FormatFloat(r, 'f', KeyPrecision, 64)
}
