// Package loki pushes audit events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are invalid in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// auditFields are the parts of an audit event JSON used for labels and timestamp.
// user_id and ip_address stay in the line; they are too high-cardinality for labels.
type auditFields struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// Client pushes to one Loki base URL (e.g. http://localhost:3100).
type Client struct {
	baseURL string
	job     string
	http    *http.Client
}

// NewClient returns a Client. job is the stream's job label.
func NewClient(baseURL, job string) *Client {
	if job == "" {
		job = "session-gate"
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		job:     job,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// PushAuditJSON parses an audit event JSON (Kafka message value), labels it by action, and pushes it.
// If parsing fails, the raw line is pushed with the current time and no extra labels.
func (c *Client) PushAuditJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields auditFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.Action != "" {
			labels["action"] = fields.Action
		}
		if fields.Timestamp != "" {
			if t, err := time.Parse(time.RFC3339Nano, fields.Timestamp); err == nil {
				ts = t
			}
		}
	}
	return c.Push(ctx, ts, string(rawJSON), labels)
}

// Push sends a single log line. Returns an error if the HTTP request fails or Loki returns non-2xx.
func (c *Client) Push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = c.job
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
