// Package apiclient is the kiosk's client for the attendance API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors mapped from HTTP statuses.
var (
	// ErrNotFound maps 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrConflict maps 409 responses: the attendance write's precondition
	// failed server-side, which the kiosk surfaces as "already recorded".
	ErrConflict = errors.New("already recorded")
)

// Company mirrors the API's company payload.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client calls the attendance API. Register a device first; subsequent
// writes carry the issued bearer token.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	token string
}

// New creates a client with a short timeout suited to LAN deployments.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterDevice registers the kiosk and stores the issued access token.
func (c *Client) RegisterDevice(ctx context.Context, deviceID string) error {
	body, _ := json.Marshal(map[string]string{"device_id": deviceID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/devices/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("device register request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("device register error: %s", resp.Status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	c.token = out.AccessToken
	return nil
}

// Companies lists the companies available for session selection.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	var out struct {
		Companies []Company `json:"companies"`
	}
	if err := c.getJSON(ctx, "/companies", nil, &out); err != nil {
		return nil, err
	}
	return out.Companies, nil
}

// Labels returns the roster labels and total enrolled count for a company.
func (c *Client) Labels(ctx context.Context, companyID int64) ([]string, int, error) {
	q := url.Values{"companyId": {strconv.FormatInt(companyID, 10)}}
	var out struct {
		Labels     []string `json:"labels"`
		TotalUsers int      `json:"totalUsers"`
	}
	if err := c.getJSON(ctx, "/roster", q, &out); err != nil {
		return nil, 0, err
	}
	return out.Labels, out.TotalUsers, nil
}

// EnrollmentPhoto fetches the stored enrollment photo for a label.
func (c *Client) EnrollmentPhoto(ctx context.Context, label string, companyID int64) ([]byte, error) {
	q := url.Values{
		"label":     {label},
		"companyId": {strconv.FormatInt(companyID, 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/enrollment-photo?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("photo error: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// PersonID resolves a roster label to a person id.
func (c *Client) PersonID(ctx context.Context, label string, companyID int64) (int64, error) {
	q := url.Values{
		"label":     {label},
		"companyId": {strconv.FormatInt(companyID, 10)},
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.getJSON(ctx, "/person-id", q, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// EntryExists reports whether today's entry is already recorded.
func (c *Client) EntryExists(ctx context.Context, personID, companyID int64) (bool, error) {
	return c.exists(ctx, "/attendance/entry-exists", personID, companyID)
}

// ExitExists reports whether today's exit is already recorded.
func (c *Client) ExitExists(ctx context.Context, personID, companyID int64) (bool, error) {
	return c.exists(ctx, "/attendance/exit-exists", personID, companyID)
}

func (c *Client) exists(ctx context.Context, path string, personID, companyID int64) (bool, error) {
	q := url.Values{
		"personId":  {strconv.FormatInt(personID, 10)},
		"companyId": {strconv.FormatInt(companyID, 10)},
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.getJSON(ctx, path, q, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// SubmitEntry records an entry with the kiosk's local timestamp.
func (c *Client) SubmitEntry(ctx context.Context, personID, companyID int64, ts time.Time) error {
	return c.submit(ctx, "/attendance/entry", personID, companyID, ts)
}

// SubmitExit records an exit with the kiosk's local timestamp.
func (c *Client) SubmitExit(ctx context.Context, personID, companyID int64, ts time.Time) error {
	return c.submit(ctx, "/attendance/exit", personID, companyID, ts)
}

func (c *Client) submit(ctx context.Context, path string, personID, companyID int64, ts time.Time) error {
	body, _ := json.Marshal(map[string]interface{}{
		"personId":  personID,
		"companyId": companyID,
		"timestamp": ts.Format(time.RFC3339),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("attendance request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return ErrConflict
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("attendance error %s: %s", resp.Status, string(body))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("api error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
