// Package roster loads and caches the enrolled face descriptors for one
// company. A cache is scoped to a single company selection; switching
// companies means building a new cache.
package roster

import (
	"bytes"
	"context"
	"io"
	"log"
	"sync"

	"facetrack/internal/facegate"
	"facetrack/internal/recog"
)

// Source provides roster labels and enrollment photos, normally the
// attendance API.
type Source interface {
	Labels(ctx context.Context, companyID int64) ([]string, int, error)
	EnrollmentPhoto(ctx context.Context, label string, companyID int64) ([]byte, error)
}

// Detector extracts face descriptors from images, normally the face service.
type Detector interface {
	Detect(ctx context.Context, image io.Reader, filename string) ([]facegate.Face, error)
}

// Cache holds labeled descriptors for one company, deduplicated by label.
type Cache struct {
	companyID int64
	batchSize int
	source    Source
	detector  Detector

	mu      sync.Mutex
	loaded  map[string]struct{}
	entries []recog.Candidate
}

// NewCache creates an empty cache for a company.
func NewCache(source Source, detector Detector, companyID int64, batchSize int) *Cache {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Cache{
		companyID: companyID,
		batchSize: batchSize,
		source:    source,
		detector:  detector,
		loaded:    make(map[string]struct{}),
	}
}

// Load fetches the label list and extracts a descriptor per enrollment photo.
// Labels are processed in batches: concurrent within a batch to bound peak
// network concurrency, sequential across batches. Labels already loaded are
// skipped, so a retried Load never duplicates entries. A photo with no
// detectable face is logged and excluded; it does not fail the batch.
// A company with nobody enrolled yields an empty cache and no error.
func (c *Cache) Load(ctx context.Context) error {
	labels, _, err := c.source.Labels(ctx, c.companyID)
	if err != nil {
		return err
	}

	for start := 0; start < len(labels); start += c.batchSize {
		end := start + c.batchSize
		if end > len(labels) {
			end = len(labels)
		}
		c.loadBatch(ctx, labels[start:end])
	}
	return ctx.Err()
}

func (c *Cache) loadBatch(ctx context.Context, batch []string) {
	var wg sync.WaitGroup
	for _, label := range batch {
		if !c.markLoading(label) {
			continue
		}
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			c.loadOne(ctx, label)
		}(label)
	}
	wg.Wait()
}

// markLoading claims a label; false when it was already claimed.
func (c *Cache) markLoading(label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.loaded[label]; ok {
		return false
	}
	c.loaded[label] = struct{}{}
	return true
}

func (c *Cache) loadOne(ctx context.Context, label string) {
	photo, err := c.source.EnrollmentPhoto(ctx, label, c.companyID)
	if err != nil {
		log.Printf("roster: photo for %q unavailable: %v", label, err)
		c.unmark(label)
		return
	}
	faces, err := c.detector.Detect(ctx, bytes.NewReader(photo), label+".jpg")
	if err != nil {
		log.Printf("roster: detection for %q failed: %v", label, err)
		c.unmark(label)
		return
	}
	if len(faces) == 0 || len(faces[0].Descriptor) == 0 {
		log.Printf("roster: no detectable face for %q, excluded", label)
		return
	}

	c.mu.Lock()
	c.entries = append(c.entries, recog.Candidate{Label: label, Descriptor: faces[0].Descriptor})
	c.mu.Unlock()
}

// unmark releases a claim after a transient failure so a later Load retries it.
func (c *Cache) unmark(label string) {
	c.mu.Lock()
	delete(c.loaded, label)
	c.mu.Unlock()
}

// Entries returns a snapshot of the cached labeled descriptors.
func (c *Cache) Entries() []recog.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recog.Candidate, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports how many descriptors are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CompanyID returns the company this cache is scoped to.
func (c *Cache) CompanyID() int64 {
	return c.companyID
}
