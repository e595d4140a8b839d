// Package wled talks to a WLED controller over its JSON HTTP API.
package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/motion"
)

// StatePath is the JSON state endpoint served by WLED.
const StatePath = "/json/state"

// Client posts state changes to one WLED device.
type Client struct {
	baseURL string
	http    *http.Client
}

// StateRequest is the subset of the WLED state object this client writes.
type StateRequest struct {
	Preset int `json:"ps"`
}

// State is the subset of the WLED state object this client reads.
type State struct {
	On         bool `json:"on"`
	Brightness int  `json:"bri"`
	Preset     int  `json:"ps"`
}

// NewClient creates a client for host, which may be a bare IP/hostname or a
// full http:// URL. A nil httpClient selects one with a 5 second timeout.
func NewClient(host string, httpClient *http.Client) *Client {
	base := strings.TrimRight(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: base, http: httpClient}
}

// BaseURL returns the normalized device URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ApplyPreset asks the device to load preset id.
func (c *Client) ApplyPreset(ctx context.Context, id motion.Preset) error {
	body, err := json.Marshal(StateRequest{Preset: int(id)})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	log.Debug().
		Str("url", c.baseURL).
		Uint16("preset", uint16(id)).
		Msg("sending preset to WLED device")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+StatePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("wled responded %s", resp.Status)
	}
	return nil
}

// State fetches the current device state.
func (c *Client) State(ctx context.Context) (State, error) {
	var st State

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+StatePath, nil)
	if err != nil {
		return st, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return st, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return st, fmt.Errorf("wled responded %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}
