package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RESTStore talks to a Redis-compatible REST endpoint: values are written
// with POST {base}/set/{key} and read with GET {base}/get/{key}, both
// authenticated with a bearer token.
type RESTStore struct {
	client *resty.Client
}

type restResponse struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

// NewRESTStore validates the endpoint and builds the client. Only https
// endpoints are accepted since the token travels in a header.
func NewRESTStore(baseURL, token string, timeout time.Duration) (*RESTStore, error) {
	return newRESTStore(baseURL, token, timeout, nil)
}

func newRESTStore(baseURL, token string, timeout time.Duration, httpClient *http.Client) (*RESTStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store URL: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("store URL must be an https URL: %q", baseURL)
	}
	if token == "" {
		return nil, fmt.Errorf("store token is required")
	}

	client := resty.New()
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	}
	client.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &RESTStore{client: client}, nil
}

// Set stores value under key. The endpoint must answer {"result":"OK"}.
func (s *RESTStore) Set(ctx context.Context, key, value string) error {
	var body restResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(value).
		SetResult(&body).
		SetError(&body).
		Post("/set/" + url.PathEscape(key))
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	if resp.IsError() {
		// Don't include response body in error to prevent token leakage
		return fmt.Errorf("store error setting %s (status %d)", key, resp.StatusCode())
	}
	if body.Result == nil || *body.Result != "OK" {
		return fmt.Errorf("store rejected %s: %s", key, body.Error)
	}
	return nil
}

// Get reads the value under key. A null result means the key is absent.
func (s *RESTStore) Get(ctx context.Context, key string) (string, error) {
	var body restResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&body).
		Get("/get/" + url.PathEscape(key))
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("store error getting %s (status %d)", key, resp.StatusCode())
	}
	if body.Result == nil {
		return "", ErrNotFound
	}
	return *body.Result, nil
}
