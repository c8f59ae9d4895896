package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/precountlive/precount/internal/config"
)

const retryWait = 500 * time.Millisecond

// ErrTableNotFound is returned when the page has no element matching the selector.
var ErrTableNotFound = errors.New("results table not found")

// Scraper fetches the results page described by a config.Source.
type Scraper struct {
	client *resty.Client
	source config.Source
}

// New creates a Scraper for source.
func New(source config.Source) *Scraper {
	client := resty.New().
		SetHeader("User-Agent", source.UserAgent).
		SetTimeout(source.Timeout).
		SetRetryCount(source.Retries).
		SetRetryWaitTime(retryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &Scraper{client: client, source: source}
}

// FetchTable downloads the page and returns the outer HTML of the results table.
func (s *Scraper) FetchTable(ctx context.Context) (string, error) {
	page, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	return ExtractTable(bytes.NewReader(page), s.source.TableSelector)
}

func (s *Scraper) fetch(ctx context.Context) ([]byte, error) {
	req := s.client.R().SetContext(ctx)

	var (
		resp *resty.Response
		err  error
	)
	if strings.EqualFold(s.source.Method, http.MethodPost) {
		resp, err = req.SetFormData(s.source.Params).Post(s.source.URL)
	} else {
		resp, err = req.SetQueryParams(s.source.Params).Get(s.source.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// ExtractTable parses an HTML page and returns the outer HTML of the first
// element matching selector.
func ExtractTable(r io.Reader, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrTableNotFound, selector)
	}

	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return html, nil
}
