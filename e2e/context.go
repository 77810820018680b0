package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	AdminToken       string
	RequesterURL     string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// Saved carries ids captured by earlier steps, keyed by the step's label.
	Saved map[string]string
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		AdminToken:   getEnv("ADMIN_TOKEN", "e2e-admin-token"),
		RequesterURL: getEnv("REQUESTER_URL", "http://localhost:8082"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Saved: make(map[string]string),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

// AdminPOST sends a POST carrying the admin token header.
func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, tc.adminHeaders())
}

// AdminGET sends a GET carrying the admin token header.
func (tc *TestContext) AdminGET(path string) error {
	return tc.do(http.MethodGet, path, nil, tc.adminHeaders())
}

// AdminDELETE sends a DELETE carrying the admin token header.
func (tc *TestContext) AdminDELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, tc.adminHeaders())
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

// DELETE makes a DELETE request and stores the response
func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, nil)
}

func (tc *TestContext) adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": tc.AdminToken}
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// GetResponseField extracts a field from the JSON response. Dotted paths
// descend into nested objects.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var current any = data
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return current, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}

	return false
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) GetRequesterURL() string {
	return tc.RequesterURL
}

func (tc *TestContext) Save(key, value string) {
	tc.Saved[key] = value
}

func (tc *TestContext) Load(key string) (string, error) {
	v, ok := tc.Saved[key]
	if !ok {
		return "", fmt.Errorf("nothing saved as %q", key)
	}
	return v, nil
}
