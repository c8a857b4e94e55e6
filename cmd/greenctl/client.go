package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwarner/greenflow/internal/history"
	"github.com/mwarner/greenflow/internal/script"
	"github.com/mwarner/greenflow/internal/terminal"
)

// client is a thin JSON client for the daemon's HTTP API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *client) request(ctx context.Context, method, path string, body, dst any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func (c *client) listSessions(ctx context.Context) ([]terminal.SessionInfo, error) {
	var resp struct {
		Sessions []terminal.SessionInfo `json:"sessions"`
	}
	err := c.request(ctx, http.MethodGet, "/v1/connections/sessions", nil, &resp)
	return resp.Sessions, err
}

func (c *client) listScripts(ctx context.Context) ([]script.Summary, error) {
	var resp struct {
		Scripts []script.Summary `json:"scripts"`
	}
	err := c.request(ctx, http.MethodGet, "/v1/automation/scripts", nil, &resp)
	return resp.Scripts, err
}

func (c *client) listRuns(ctx context.Context) ([]history.RunSummary, error) {
	var resp struct {
		Runs []history.RunSummary `json:"runs"`
	}
	err := c.request(ctx, http.MethodGet, "/v1/automation/runs", nil, &resp)
	return resp.Runs, err
}

func (c *client) execute(ctx context.Context, scriptID string) (*script.Run, error) {
	var run script.Run
	if err := c.request(ctx, http.MethodPost, "/v1/automation/execute/"+scriptID, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
