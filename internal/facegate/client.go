// Package facegate talks to the external face-detection service. Detection,
// landmark extraction, and descriptor math are entirely the service's
// business; this client only moves images in and geometry out.
package facegate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Point is a 2D landmark coordinate in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a face bounding box in frame pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face is one detected face: bounding box, the six landmark points per eye
// (outer corner, upper-outer, upper-inner, inner corner, lower-inner,
// lower-outer), and a fixed-length embedding.
type Face struct {
	Box        Box       `json:"box"`
	LeftEye    []Point   `json:"left_eye"`
	RightEye   []Point   `json:"right_eye"`
	Descriptor []float32 `json:"descriptor"`
}

// Client calls the face detection service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Detect returns a canned single face
// so the rest of the pipeline can run without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Detect uploads an image and returns the detected faces. An image with no
// detectable face yields an empty slice, not an error.
func (c *Client) Detect(ctx context.Context, image io.Reader, filename string) ([]Face, error) {
	if c.Skip {
		return []Face{mockFace()}, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(body))
	}

	var out struct {
		Faces []Face `json:"faces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Faces, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func mockFace() Face {
	desc := make([]float32, 128)
	for i := range desc {
		desc[i] = float32(i) / 128
	}
	return Face{
		Box: Box{X: 100, Y: 80, Width: 120, Height: 140},
		LeftEye: []Point{
			{X: 120, Y: 110}, {X: 126, Y: 105}, {X: 134, Y: 105},
			{X: 140, Y: 110}, {X: 134, Y: 115}, {X: 126, Y: 115},
		},
		RightEye: []Point{
			{X: 170, Y: 110}, {X: 176, Y: 105}, {X: 184, Y: 105},
			{X: 190, Y: 110}, {X: 184, Y: 115}, {X: 176, Y: 115},
		},
		Descriptor: desc,
	}
}
