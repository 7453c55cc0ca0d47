// Package client talks to the taskdesk HTTP API. Every authenticated call
// sends the stored token verbatim in the Authorization header.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskdesk/internal/model"
)

// ErrNotSignedIn is returned by authenticated calls made without a token.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("taskdesk: %d %s", e.Status, e.Message)
}

// NoticeError is a 200 response that carried a message instead of a result,
// such as a duplicate email.
type NoticeError struct {
	Message string
}

func (e *NoticeError) Error() string { return e.Message }

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

// CreatedTask is the add-task response.
type CreatedTask struct {
	Message string     `json:"message"`
	Task    model.Task `json:"task"`
}

type tokenOrMessage struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Signup registers an admin and keeps the returned token.
func (c *Client) Signup(ctx context.Context, name, email, password string) (string, error) {
	return c.authenticate(ctx, "/api/admin/signup", map[string]string{
		"name": name, "email": email, "password": password,
	})
}

// Signin keeps the returned token on success.
func (c *Client) Signin(ctx context.Context, email, password string) (string, error) {
	return c.authenticate(ctx, "/api/admin/signin", map[string]string{
		"email": email, "password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (string, error) {
	var out tokenOrMessage
	if err := c.do(ctx, http.MethodPost, path, false, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &NoticeError{Message: out.Message}
	}
	c.token = out.Token
	return out.Token, nil
}

// CreateUser returns the new user's id.
func (c *Client) CreateUser(ctx context.Context, name, email string) (string, error) {
	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/create-user", true, map[string]string{
		"name": name, "email": email,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &NoticeError{Message: out.Message}
	}
	return out.ID, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", true, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// TaskInput is the add-task body. Empty fields are omitted so the server
// applies its defaults.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (c *Client) AddTask(ctx context.Context, userID string, in TaskInput) (*CreatedTask, error) {
	var out CreatedTask
	if err := c.do(ctx, http.MethodPost, "/api/task/add-task/"+url.PathEscape(userID), true, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/task/get-tasks/"+url.PathEscape(userID), true, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CompleteTask marks the task Completed and returns the server message.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPatch, "/api/task/update-status/"+url.PathEscape(taskID), true, map[string]string{
		"status": string(model.StatusCompleted),
	}, &out)
	return out.Message, err
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, out any) error {
	if auth && c.token == "" {
		return ErrNotSignedIn
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
