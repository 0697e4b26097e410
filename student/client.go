// Package student is the thin REST wrapper over the backend's student
// resource.  It goes through the auth client's http client, so the bearer
// token and 401 semantics of the session layer apply to every call; there
// is no business logic here.
package student

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anoano/portal/authapi"
)

const basePath = "/api/students"

// Student is the backend's student resource.
type Student struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Client wraps the backend's student endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a student Client riding on the auth client's transport.
func New(auth *authapi.Client, baseURL string) (*Client, error) {
	const op = "student.New"
	if auth == nil {
		return nil, fmt.Errorf("%s: auth client is nil: %w", op, authapi.ErrNilParameter)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base URL is empty: %w", op, authapi.ErrInvalidParameter)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  auth.HTTPClient(),
	}, nil
}

// List fetches all students.
func (c *Client) List(ctx context.Context) ([]Student, error) {
	const op = "student.Client.List"
	var out []Student
	if err := c.do(ctx, http.MethodGet, basePath, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Get fetches one student by id.
func (c *Client) Get(ctx context.Context, id int64) (*Student, error) {
	const op = "student.Client.Get"
	var out Student
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", basePath, id), nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// Create adds a student.  The id is assigned by the backend.
func (c *Client) Create(ctx context.Context, s Student) error {
	const op = "student.Client.Create"
	s.ID = 0
	if err := c.do(ctx, http.MethodPost, basePath, s, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update replaces the student's mutable fields.
func (c *Client) Update(ctx context.Context, id int64, s Student) error {
	const op = "student.Client.Update"
	s.ID = 0
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", basePath, id), s, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete removes a student.
func (c *Client) Delete(ctx context.Context, id int64) error {
	const op = "student.Client.Delete"
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", basePath, id), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	const op = "student.Client.do"
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: unable to encode request body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request to %s failed: %w", op, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %s answered 401: %w", op, path, authapi.ErrUnauthenticated)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s: %s answered %d: %w", op, path, resp.StatusCode, authapi.ErrServer)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: response from %s: %v: %w", op, path, err, authapi.ErrMalformedResponse)
	}
	return nil
}
