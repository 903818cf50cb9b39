// Package segtime recomputes per-track segment times against the remote
// geometry service whenever gates or tracks change.
package segtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

// Source computes segment times for one track against a gate set.
type Source interface {
	SegmentTimes(ctx context.Context, points []wire.Point, gates []wire.GatePayload, bufferM float64) ([]wire.SegmentResult, error)
}

// Client talks to the segment-time service over its HTTP contract.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type segmentTimesRequest struct {
	Points  []wire.Point       `json:"points"`
	Gates   []wire.GatePayload `json:"gates"`
	BufferM float64            `json:"buffer_m"`
}

type segmentTimesResponse struct {
	Segments []wire.SegmentResult `json:"segments"`
}

func (c *Client) SegmentTimes(ctx context.Context, points []wire.Point, gates []wire.GatePayload, bufferM float64) ([]wire.SegmentResult, error) {
	body, err := json.Marshal(segmentTimesRequest{Points: points, Gates: gates, BufferM: bufferM})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/segment-times", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("segment-time service returned status %d", resp.StatusCode)
	}

	var out segmentTimesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Segments, nil
}
