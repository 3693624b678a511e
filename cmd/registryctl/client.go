package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

type registryClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *registryClient {
	return &registryClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *registryClient) do(method, path string, body any, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid := resolvedUser(); uid != 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(uid, 10))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// getJSON performs a GET request and decodes the response.
func (c *registryClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *registryClient) postJSON(path string, body any, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// putJSON performs a PUT request with a JSON body and decodes the response.
func (c *registryClient) putJSON(path string, body any, v any) error {
	return c.do(http.MethodPut, path, body, v)
}
