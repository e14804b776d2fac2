package centerline

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"curvedmpr/internal/models"
)

// node is a centerline sample stored in the kd-tree
type node struct {
	pos   r3.Vec
	index int
}

// Compare implements the kdtree.Comparable interface
func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	switch d {
	case 0:
		return n.pos.X - q.pos.X
	case 1:
		return n.pos.Y - q.pos.Y
	case 2:
		return n.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (n node) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two nodes
func (n node) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(n.pos, c.(node).pos))
}

type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p nodes) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(nodePlane{nodes: p, Dim: d}, kdtree.MedianOfRandoms(nodePlane{nodes: p, Dim: d}, 100))
}

// nodePlane implements sort.Interface and kdtree.SortSlicer for nodes
type nodePlane struct {
	nodes
	kdtree.Dim
}

func (p nodePlane) Less(i, j int) bool {
	return p.nodes[i].Compare(p.nodes[j], p.Dim) < 0
}

func (p nodePlane) Slice(start, end int) kdtree.SortSlicer {
	return nodePlane{nodes: p.nodes[start:end], Dim: p.Dim}
}

func (p nodePlane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// Location is the projection of a world point onto a centerline
type Location struct {
	// Index is the nearest centerline sample
	Index int `json:"index"`

	// Point is the closest point on the polyline, with its arc length
	Point models.CenterlinePoint `json:"point"`

	// Offset is the distance in mm from the query to Point
	Offset float64 `json:"offset"`
}

// Locator answers nearest-point queries against a centerline
type Locator struct {
	result *models.CenterlineResult
	tree   *kdtree.Tree
}

// NewLocator indexes the samples of result
func NewLocator(result *models.CenterlineResult) (*Locator, error) {
	if result == nil || len(result.Points) == 0 {
		return nil, ErrEmptyCenterline
	}
	pts := make(nodes, len(result.Points))
	for i, p := range result.Points {
		pts[i] = node{pos: p.Vec(), index: i}
	}
	return &Locator{result: result, tree: kdtree.New(pts, false)}, nil
}

// Locate finds the closest point on the centerline polyline to p. The
// nearest sample is found in the tree, then p is projected onto the two
// segments adjacent to it.
func (l *Locator) Locate(p models.Point3D) Location {
	q := node{pos: p.Vec(), index: -1}
	got, _ := l.tree.Nearest(q)
	nearest := got.(node).index

	pts := l.result.Points
	best := Location{
		Index:  nearest,
		Point:  clonePoint(pts[nearest]),
		Offset: math.Sqrt(q.Distance(got)),
	}

	for _, seg := range [][2]int{{nearest - 1, nearest}, {nearest, nearest + 1}} {
		if seg[0] < 0 || seg[1] >= len(pts) {
			continue
		}
		a, b := pts[seg[0]], pts[seg[1]]
		ab := r3.Sub(b.Vec(), a.Vec())
		l2 := r3.Norm2(ab)
		if l2 == 0 {
			continue
		}
		t := r3.Dot(r3.Sub(q.pos, a.Vec()), ab) / l2
		t = math.Max(0, math.Min(1, t))
		proj := r3.Add(a.Vec(), r3.Scale(t, ab))
		if off := r3.Norm(r3.Sub(q.pos, proj)); off < best.Offset {
			d := a.Distance + t*(b.Distance-a.Distance)
			if pt, ok := InterpolateAtDistance(l.result, d); ok {
				best.Point = pt
				best.Offset = off
			}
		}
	}
	return best
}
