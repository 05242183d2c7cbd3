package recog

import (
	"math"
	"testing"
)

func testCandidates() []Candidate {
	return []Candidate{
		{Label: "ana", Descriptor: []float32{0, 0, 0, 0}},
		{Label: "luis", Descriptor: []float32{1, 0, 0, 0}},
		{Label: "marta", Descriptor: []float32{0, 0, 2, 0}},
	}
}

func TestMatcherNearestLabel(t *testing.T) {
	m := NewMatcher(testCandidates(), 0.5)

	tests := []struct {
		name  string
		query []float32
		want  string
	}{
		{"exact ana", []float32{0, 0, 0, 0}, "ana"},
		{"near ana", []float32{0.1, 0, 0, 0}, "ana"},
		{"near luis", []float32{0.9, 0, 0, 0}, "luis"},
		{"near marta", []float32{0, 0, 1.8, 0}, "marta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, dist := m.Match(tt.query)
			if label != tt.want {
				t.Errorf("Match(%v) = %q (dist %v), want %q", tt.query, label, dist, tt.want)
			}
			if dist >= 0.5 {
				t.Errorf("accepted match with distance %v >= 0.5", dist)
			}
		})
	}
}

func TestMatcherThresholdRejects(t *testing.T) {
	m := NewMatcher(testCandidates(), 0.5)

	// Equidistant from ana and luis at exactly the threshold.
	label, dist := m.Match([]float32{0.5, 0, 0, 0})
	if label != LabelUnknown {
		t.Errorf("distance %v at threshold accepted as %q", dist, label)
	}

	// Far from everything.
	label, _ = m.Match([]float32{0, 5, 5, 5})
	if label != LabelUnknown {
		t.Errorf("distant query accepted as %q", label)
	}
}

func TestMatcherEmptySet(t *testing.T) {
	m := NewMatcher(nil, 0.5)
	label, dist := m.Match([]float32{1, 2, 3})
	if label != LabelUnknown {
		t.Errorf("empty set returned %q", label)
	}
	if !math.IsInf(dist, 1) {
		t.Errorf("empty set distance = %v, want +Inf", dist)
	}
}

func TestMatcherEmptyQuery(t *testing.T) {
	m := NewMatcher(testCandidates(), 0.5)
	if label, _ := m.Match(nil); label != LabelUnknown {
		t.Errorf("nil query returned %q", label)
	}
}

func TestMatcherSkipsBlankCandidates(t *testing.T) {
	m := NewMatcher([]Candidate{
		{Label: "", Descriptor: []float32{0, 0}},
		{Label: "ghost", Descriptor: nil},
	}, 0.5)
	if label, _ := m.Match([]float32{0, 0}); label != LabelUnknown {
		t.Errorf("blank candidates matched as %q", label)
	}
}

func TestEuclidean(t *testing.T) {
	got := euclidean([]float32{0, 3}, []float32{4, 0})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("euclidean = %v, want 5", got)
	}
}
