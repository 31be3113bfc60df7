// Package medscape talks to the Medscape drug lookup and multi-interaction endpoints.
package medscape

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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/interactions-api/interactions/entities"
	"github.com/giygas/interactions-api/interfaces"
	"github.com/giygas/interactions-api/logging"
	"github.com/juju/ratelimit"
	"golang.org/x/text/encoding/charmap"
)

const (
	jsonpCallback = "MDICshowResults"

	// errorCodeResults is the errorCode of a multi-interaction answer carrying findings
	errorCodeResults = 1

	maxBodyBytes = 8 << 20
	userAgent    = "interactions-api/1.0"
)

var (
	// ErrRateLimited is returned when no outbound token became available in time
	ErrRateLimited = errors.New("outbound rate limit exhausted")

	// ErrUnexpectedStatus is returned for non-2xx answers
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Options configures a Client
type Options struct {
	LookupBaseURL      string
	InteractionBaseURL string
	// Timeout bounds every HTTP exchange, on top of the caller context
	Timeout time.Duration
	// Rate is the number of outbound calls per second, Burst the bucket capacity
	Rate  float64
	Burst int64
	// MaxWait is the longest a call waits for an outbound token
	MaxWait time.Duration
}

// Client implements identifier lookup and interaction retrieval against Medscape
type Client struct {
	httpClient     *http.Client
	lookupURL      string
	interactionURL string
	bucket         *ratelimit.Bucket
	maxWait        time.Duration
}

var (
	_ interfaces.IdentifierLookup    = (*Client)(nil)
	_ interfaces.InteractionProvider = (*Client)(nil)
)

// NewClient creates a client sharing one outbound token bucket between both endpoints
func NewClient(opts Options) *Client {
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		lookupURL:      opts.LookupBaseURL,
		interactionURL: opts.InteractionBaseURL,
		bucket:         ratelimit.NewBucketWithRate(opts.Rate, opts.Burst),
		maxWait:        opts.MaxWait,
	}
}

type lookupResponse struct {
	Types []struct {
		References []struct {
			ID referenceID `json:"id"`
		} `json:"references"`
	} `json:"types"`
}

// referenceID accepts both quoted and bare numeric ids
type referenceID string

func (r *referenceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = referenceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reference id is neither a string nor a number: %s", data)
	}
	*r = referenceID(n.String())
	return nil
}

type interactionResponse struct {
	ErrorCode         int `json:"errorCode"`
	MultiInteractions []struct {
		Subject    string `json:"subject"`
		Object     string `json:"object"`
		SeverityID int    `json:"severityId"`
		Severity   string `json:"severity"`
		Text       string `json:"text"`
	} `json:"multiInteractions"`
}

// LookupIdentifiers returns the first reference id of the first result type for name.
// An unknown name yields an empty slice and a nil error.
func (c *Client) LookupIdentifiers(ctx context.Context, name string) ([]string, error) {
	u, err := url.Parse(c.lookupURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup URL: %w", err)
	}
	q := u.Query()
	q.Set("q", name)
	q.Set("sz", "500")
	q.Set("type", "10417")
	q.Set("metadata", "has-interactions")
	q.Set("format", "json")
	q.Set("jsonp", jsonpCallback)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}

	var resp lookupResponse
	if err := json.Unmarshal(stripJSONP(body), &resp); err != nil {
		return nil, fmt.Errorf("lookup %q: failed to decode response: %w", name, err)
	}

	if len(resp.Types) == 0 || len(resp.Types[0].References) == 0 {
		return []string{}, nil
	}

	id := strings.TrimSpace(string(resp.Types[0].References[0].ID))
	if id == "" {
		return []string{}, nil
	}

	logging.Debug("Identifier resolved", "name", name, "id", id)
	return []string{id}, nil
}

// FetchInteractions queries all pairwise interactions between ids in one call
func (c *Client) FetchInteractions(ctx context.Context, ids []string) ([]entities.RawInteraction, error) {
	u, err := url.Parse(c.interactionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid interaction URL: %w", err)
	}
	q := u.Query()
	q.Set("action", "getMultiInteraction")
	q.Set("ids", strings.Join(ids, ","))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var resp interactionResponse
	if err := json.Unmarshal(stripJSONP(body), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode interaction response: %w", err)
	}

	// Any other code means no findings for this combination
	if resp.ErrorCode != errorCodeResults {
		logging.Debug("No interaction findings", "ids", ids, "errorCode", resp.ErrorCode)
		return []entities.RawInteraction{}, nil
	}

	raw := make([]entities.RawInteraction, 0, len(resp.MultiInteractions))
	for _, mi := range resp.MultiInteractions {
		raw = append(raw, entities.RawInteraction{
			Subject:    mi.Subject,
			Object:     mi.Object,
			SeverityID: mi.SeverityID,
			Severity:   mi.Severity,
			Text:       mi.Text,
		})
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.take(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, strconv.Itoa(response.StatusCode))
	}

	return decodeBody(bodyBytes)
}

// take waits for an outbound token, bounded by maxWait and the context deadline
func (c *Client) take(ctx context.Context) error {
	wait := c.maxWait
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if wait < 0 {
		wait = 0
	}
	if !c.bucket.WaitMaxDuration(1, wait) {
		return ErrRateLimited
	}
	return ctx.Err()
}

// decodeBody returns UTF-8 text, decoding ISO-8859-1 answers
func decodeBody(body []byte) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}
	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ISO-8859-1 body: %w", err)
	}
	return decoded, nil
}

// stripJSONP unwraps callback(...); into its JSON payload. Plain JSON is returned unchanged.
func stripJSONP(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	open := bytes.IndexByte(trimmed, '(')
	end := bytes.LastIndexByte(trimmed, ')')
	if open < 0 || end <= open {
		return trimmed
	}
	return bytes.TrimSpace(trimmed[open+1 : end])
}
