package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// QualityClient talks to the external report-quality validator. The call is
// explicitly non-blocking-on-failure: a timeout or error means the report
// proceeds with the caller-supplied or default category and priority.
type QualityClient struct {
	baseURL string
	http    *http.Client
}

func NewQualityClient(baseURL string) *QualityClient {
	return &QualityClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a validator endpoint is configured.
func (c *QualityClient) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type qualityRequest struct {
	ReportID    string   `json:"report_id"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// QualityVerdict is the validator's answer for one report.
type QualityVerdict struct {
	Accept   bool   `json:"accept"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
	Urgency  string `json:"urgency"`
}

// SuggestedPriority maps the validator's urgency label onto an issue
// priority; an empty string means no suggestion.
func (v *QualityVerdict) SuggestedPriority() string {
	switch v.Urgency {
	case "high", "urgent", "medium", "low":
		return v.Urgency
	}
	return ""
}

// Check submits the report for validation.
func (c *QualityClient) Check(ctx context.Context, req qualityRequest) (*QualityVerdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quality validator returned status %d", resp.StatusCode)
	}

	var verdict QualityVerdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}
