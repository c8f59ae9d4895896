package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const gistAPIURL = "https://api.github.com"

// GistStore keeps each key as a <key>.json file in one GitHub gist.
type GistStore struct {
	gistID string
	client *resty.Client
}

type gistFile struct {
	Content string `json:"content"`
}

type gistPayload struct {
	Files map[string]gistFile `json:"files"`
}

// NewGistStore creates a store backed by an existing gist.
func NewGistStore(gistID, githubToken string, timeout time.Duration) (*GistStore, error) {
	return newGistStore(gistID, githubToken, timeout, gistAPIURL)
}

func newGistStore(gistID, githubToken string, timeout time.Duration, apiURL string) (*GistStore, error) {
	if gistID == "" {
		return nil, fmt.Errorf("gist ID is required")
	}
	if githubToken == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}

	client := resty.New().
		SetBaseURL(apiURL).
		SetHeader("Authorization", "token "+githubToken).
		SetHeader("Accept", "application/vnd.github.v3+json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &GistStore{gistID: gistID, client: client}, nil
}

// Set replaces the gist file for key, leaving the other files untouched.
func (g *GistStore) Set(ctx context.Context, key, value string) error {
	payload := gistPayload{Files: map[string]gistFile{
		fileName(key): {Content: value},
	}}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetPathParam("id", g.gistID).
		Patch("/gists/{id}")
	if err != nil {
		return fmt.Errorf("updating gist: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		// Don't include response body in error to prevent information leakage
		return fmt.Errorf("GitHub API error (status %d)", resp.StatusCode())
	}
	return nil
}

// Get reads the gist file for key.
func (g *GistStore) Get(ctx context.Context, key string) (string, error) {
	var gist gistPayload
	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&gist).
		SetPathParam("id", g.gistID).
		Get("/gists/{id}")
	if err != nil {
		return "", fmt.Errorf("fetching gist: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("GitHub API error (status %d)", resp.StatusCode())
	}

	file, ok := gist.Files[fileName(key)]
	if !ok {
		return "", ErrNotFound
	}
	return file.Content, nil
}
