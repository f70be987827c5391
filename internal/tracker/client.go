package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"issuewatch/pkg/logx"
)

// ClientConfig controls the remote fetch side.
type ClientConfig struct {
	// RequestTimeout bounds a single fetch; a timeout counts as a fetch error.
	RequestTimeout time.Duration
	// BearerToken, when set, is sent as an Authorization header.
	BearerToken string
}

// Client retrieves issue documents over HTTPS.
type Client struct {
	http  *http.Client
	token string
	log   logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		token: strings.TrimSpace(cfg.BearerToken),
		log:   log,
	}
}

// Endpoint derives the canonical fetch endpoint and issue key from a source
// locator. The derivation is deterministic: a browse URL like
//
//	https://tracker.example.com/browse/PROJ-123
//
// maps to
//
//	https://tracker.example.com/rest/api/2/issue/PROJ-123
//
// A locator already pointing at the REST resource is passed through.
func Endpoint(source string) (key, endpoint string, err error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return "", "", fmt.Errorf("invalid source locator %q: %w", source, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid source locator %q: missing scheme or host", source)
	}

	path := strings.Trim(u.Path, "/")
	segs := strings.Split(path, "/")
	key = segs[len(segs)-1]
	if key == "" || !strings.Contains(key, "-") {
		return "", "", fmt.Errorf("invalid source locator %q: no issue key in path", source)
	}
	key = strings.ToUpper(key)

	if strings.Contains(path, "rest/api/") {
		u.Fragment, u.RawQuery = "", ""
		return key, u.String(), nil
	}
	return key, u.Scheme + "://" + u.Host + "/rest/api/2/issue/" + key, nil
}

// FetchRecord retrieves and parses one issue document.
//
// Non-2xx responses and transport failures return *FetchError; a body that
// does not map to the expected schema returns *ParseError. Neither mutates
// any cache.
func (c *Client) FetchRecord(ctx context.Context, endpoint string) (*Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{URL: endpoint, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}

	rec, err := parseRecord(body)
	if err != nil {
		return nil, &ParseError{URL: endpoint, Err: err}
	}
	return rec, nil
}

// Probe performs the synchronous reachability validation used on task add:
// one fetch+parse round trip. Callers are free to discard the record; the
// orchestrator does, so a task's first scheduled cycle reports it as new.
func (c *Client) Probe(ctx context.Context, endpoint string) (*Record, error) {
	rec, err := c.FetchRecord(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("empty record")
	}
	return rec, nil
}
