// Package openreview is a minimal client for the OpenReview API v2.
package openreview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

const (
	DefaultBaseURL  = "https://api2.openreview.net"
	DefaultPageSize = 1000
	DefaultRPM      = 60

	defaultHTTPTimeout = 60 * time.Second
)

var errStatus = errors.New("openreview status")

// Options configures a Client. Zero fields take the defaults. Username and
// Password, when set, are exchanged for a token on the first fetch.
type Options struct {
	BaseURL    string
	Username   string
	Password   string
	RPM        int
	PageSize   int
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client calls the OpenReview API. Every request waits on a shared rate
// limiter.
type Client struct {
	baseURL  string
	pageSize int
	limiter  *rate.Limiter
	http     *http.Client
	logger   *zerolog.Logger

	mu       sync.Mutex
	username string
	password string
	token    string
}

// New creates a client. It does not authenticate: configured credentials
// are used lazily by FetchVenue, or call Login directly.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RPM <= 0 {
		opts.RPM = DefaultRPM
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Client{
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RPM)), 1),
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		username: opts.Username,
		password: opts.Password,
	}
}

// Login exchanges credentials for a bearer token used by later calls.
// Empty credentials leave the client anonymous.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password must be given together", internalerr.ErrInvalidConfig)
	}
	body, err := json.Marshal(map[string]string{"id": username, "password": password})
	if err != nil {
		return err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &out); err != nil {
		return fmt.Errorf("openreview login: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("openreview login: empty token")
	}
	c.token = out.Token
	c.logger.Info().Str("user", username).Msg("logged in to openreview")
	return nil
}

// Group is a venue or committee group.
type Group struct {
	ID      string                     `json:"id"`
	Content map[string]json.RawMessage `json:"content"`
}

// SubmissionName returns the name of the venue's submission invitation,
// e.g. "Submission" or "Blind_Submission".
func (g Group) SubmissionName() (string, error) {
	raw, ok := g.Content["submission_name"]
	if !ok {
		return "", fmt.Errorf("%w: group %s has no submission_name", internalerr.ErrNotFound, g.ID)
	}
	var v struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Value == "" {
		return "", fmt.Errorf("%w: group %s has no submission_name value", internalerr.ErrNotFound, g.ID)
	}
	return v.Value, nil
}

// GetGroup fetches the group with the given id.
func (c *Client) GetGroup(ctx context.Context, id string) (Group, error) {
	var out struct {
		Groups []Group `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups", url.Values{"id": {id}}, nil, &out); err != nil {
		return Group{}, fmt.Errorf("get group %s: %w", id, err)
	}
	if len(out.Groups) == 0 {
		return Group{}, fmt.Errorf("%w: group %s", internalerr.ErrNotFound, id)
	}
	return out.Groups[0], nil
}

// GetAllNotes pages through every note of an invitation. Notes are returned
// as decoded JSON objects with numbers kept as json.Number.
func (c *Client) GetAllNotes(ctx context.Context, invitation, details string) ([]map[string]any, error) {
	var notes []map[string]any
	for offset := 0; ; {
		q := url.Values{
			"invitation": {invitation},
			"offset":     {strconv.Itoa(offset)},
			"limit":      {strconv.Itoa(c.pageSize)},
		}
		if details != "" {
			q.Set("details", details)
		}
		var page struct {
			Notes []map[string]any `json:"notes"`
			Count int              `json:"count"`
		}
		if err := c.do(ctx, http.MethodGet, "/notes", q, nil, &page); err != nil {
			return nil, fmt.Errorf("get notes %s offset %d: %w", invitation, offset, err)
		}
		notes = append(notes, page.Notes...)
		offset += len(page.Notes)
		c.logger.Debug().Str("invitation", invitation).Int("fetched", offset).Int("count", page.Count).Msg("fetched notes page")

		if len(page.Notes) < c.pageSize || (page.Count > 0 && offset >= page.Count) {
			break
		}
	}
	return notes, nil
}

// FetchVenue returns every submission note of venue, with direct replies.
// It logs in first when credentials were configured and no token is held.
func (c *Client) FetchVenue(ctx context.Context, venue string) ([]map[string]any, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}
	group, err := c.GetGroup(ctx, venue)
	if err != nil {
		return nil, err
	}
	name, err := group.SubmissionName()
	if err != nil {
		return nil, err
	}
	notes, err := c.GetAllNotes(ctx, venue+"/-/"+name, "directReplies")
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("venue", venue).Int("submissions", len(notes)).Msg("fetched venue submissions")
	return notes, nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" || (c.username == "" && c.password == "") {
		return nil
	}
	return c.Login(ctx, c.username, c.password)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("openreview rate limit: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s %s", internalerr.ErrNotFound, method, path)
		}
		return fmt.Errorf("%w: %d: %s", errStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
