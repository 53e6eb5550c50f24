// live runtime connection: talks to a running opencode server.
//
// nothing here touches the graph. a sent prompt or an abort changes the
// server's state, which lands in the database and comes back through the
// normal watch → rebuild path.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type liveClient struct {
	baseURL    string
	httpClient *http.Client
}

func newLiveClient(baseURL string) *liveClient {
	return &liveClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// prompts block until the assistant finishes, so no client timeout;
		// callers bound the request with their context
		httpClient: &http.Client{},
	}
}

func (c *liveClient) sessionURL(sessionID, action string) string {
	return c.baseURL + "/session/" + url.PathEscape(sessionID) + "/" + action
}

func (c *liveClient) post(ctx context.Context, endpoint string, body any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// sendMessage posts a user prompt to a session.
func (c *liveClient) sendMessage(ctx context.Context, sessionID, text string) error {
	body := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	}
	if err := c.post(ctx, c.sessionURL(sessionID, "message"), body); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// abortSession stops whatever the session is currently generating.
func (c *liveClient) abortSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.post(ctx, c.sessionURL(sessionID, "abort"), nil); err != nil {
		return fmt.Errorf("abort session: %w", err)
	}
	return nil
}

// liveOpencode is an opencode source with a runtime connection. only this
// type satisfies liveSource; a plain opencodeSource is read-only.
type liveOpencode struct {
	*opencodeSource
	client *liveClient
}

func (s *liveOpencode) sendMessage(ctx context.Context, sessionID, text string) error {
	return s.client.sendMessage(ctx, sessionID, text)
}

func (s *liveOpencode) abortSession(ctx context.Context, sessionID string) error {
	return s.client.abortSession(ctx, sessionID)
}
