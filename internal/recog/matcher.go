package recog

import (
	"math"

	"github.com/coder/hnsw"
)

// LabelUnknown is the sentinel returned when no roster descriptor is close
// enough. It never triggers a recording attempt.
const LabelUnknown = "unknown"

// Candidate pairs a roster label with its enrollment descriptor.
type Candidate struct {
	Label      string
	Descriptor []float32
}

// Matcher answers nearest-neighbor queries over a fixed candidate set under
// Euclidean distance. Build once per roster load; rebuild on company switch.
type Matcher struct {
	graph     *hnsw.Graph[string]
	threshold float64
	empty     bool
}

// NewMatcher indexes the candidates. Threshold is the acceptance distance;
// anything at or beyond it maps to LabelUnknown.
func NewMatcher(candidates []Candidate, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold, empty: true}
	g := hnsw.NewGraph[string]()
	g.M = 16
	g.Ml = 1.0 / 16
	g.Distance = hnsw.EuclideanDistance
	for _, c := range candidates {
		if c.Label == "" || len(c.Descriptor) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(c.Label, c.Descriptor))
		m.empty = false
	}
	m.graph = g
	return m
}

// Match returns the nearest label and its distance, or LabelUnknown when the
// nearest candidate is at or beyond the threshold (or the set is empty).
func (m *Matcher) Match(descriptor []float32) (string, float64) {
	if m.empty || len(descriptor) == 0 {
		return LabelUnknown, math.Inf(1)
	}
	neighbors := m.graph.Search(descriptor, 1)
	if len(neighbors) == 0 {
		return LabelUnknown, math.Inf(1)
	}
	best := neighbors[0]
	d := euclidean(descriptor, best.Value)
	if d >= m.threshold {
		return LabelUnknown, d
	}
	return best.Key, d
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
