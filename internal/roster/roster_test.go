package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"facetrack/internal/facegate"
)

type fakeSource struct {
	mu         sync.Mutex
	labels     []string
	photoCalls int
	failPhotos map[string]bool
}

func (f *fakeSource) Labels(ctx context.Context, companyID int64) ([]string, int, error) {
	return f.labels, len(f.labels), nil
}

func (f *fakeSource) EnrollmentPhoto(ctx context.Context, label string, companyID int64) ([]byte, error) {
	f.mu.Lock()
	f.photoCalls++
	f.mu.Unlock()
	if f.failPhotos[label] {
		return nil, errors.New("boom")
	}
	return []byte("jpeg:" + label), nil
}

type fakeDetector struct {
	mu            sync.Mutex
	concurrent    int
	maxConcurrent int
	faceless      map[string]bool
}

func (f *fakeDetector) Detect(ctx context.Context, image io.Reader, filename string) ([]facegate.Face, error) {
	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.concurrent--
		f.mu.Unlock()
	}()

	if f.faceless[filename] {
		return nil, nil
	}
	return []facegate.Face{{Descriptor: []float32{1, 2, 3}}}, nil
}

func TestLoadEmptyCompany(t *testing.T) {
	cache := NewCache(&fakeSource{}, &fakeDetector{}, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load on empty company: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, want 0", cache.Len())
	}
}

func TestLoadAllLabels(t *testing.T) {
	src := &fakeSource{labels: []string{"ana", "luis", "marta"}}
	cache := NewCache(src, &fakeDetector{}, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cache.Len())
	}
	seen := map[string]bool{}
	for _, e := range cache.Entries() {
		seen[e.Label] = true
		if len(e.Descriptor) == 0 {
			t.Errorf("entry %q has empty descriptor", e.Label)
		}
	}
	for _, l := range src.labels {
		if !seen[l] {
			t.Errorf("label %q missing from cache", l)
		}
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	src := &fakeSource{labels: []string{"ana", "luis"}}
	cache := NewCache(src, &fakeDetector{}, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	callsAfterFirst := src.photoCalls
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("Len after reload = %d, want 2 (no duplicates)", cache.Len())
	}
	if src.photoCalls != callsAfterFirst {
		t.Errorf("reload refetched photos: %d calls, want %d", src.photoCalls, callsAfterFirst)
	}
}

func TestLoadBoundsBatchConcurrency(t *testing.T) {
	var labels []string
	for i := 0; i < 35; i++ {
		labels = append(labels, fmt.Sprintf("person-%02d", i))
	}
	det := &fakeDetector{}
	cache := NewCache(&fakeSource{labels: labels}, det, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.Len() != 35 {
		t.Errorf("Len = %d, want 35", cache.Len())
	}
	if det.maxConcurrent > 10 {
		t.Errorf("max concurrent detections = %d, want <= batch size 10", det.maxConcurrent)
	}
}

func TestLoadExcludesFacelessPhotos(t *testing.T) {
	src := &fakeSource{labels: []string{"ana", "cardboard", "luis"}}
	det := &fakeDetector{faceless: map[string]bool{"cardboard.jpg": true}}
	cache := NewCache(src, det, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2 (faceless photo excluded)", cache.Len())
	}
	for _, e := range cache.Entries() {
		if e.Label == "cardboard" {
			t.Error("faceless label cached")
		}
	}
}

func TestLoadRetriesFailedPhotoOnReload(t *testing.T) {
	src := &fakeSource{
		labels:     []string{"ana", "luis"},
		failPhotos: map[string]bool{"luis": true},
	}
	cache := NewCache(src, &fakeDetector{}, 1, 10)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after photo failure", cache.Len())
	}

	src.mu.Lock()
	src.failPhotos = nil
	src.mu.Unlock()

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("Len after retry = %d, want 2", cache.Len())
	}
}
