// Package docs is the adapter for the external documentation lookup
// service. Strategies that declare a docs dependency use it to confirm
// that a suggested method or trait actually exists on a receiver type.
//
// Lookups never fail the pipeline: any transport error, timeout, or
// missing entry yields an unknown result and the caller degrades its
// confidence instead.
package docs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"remedy/internal/logging"
)

// Result is the answer to one lookup. Known is false when the service
// could not answer (unavailable, timeout, malformed response); Exists is
// only meaningful when Known is true.
type Result struct {
	Known     bool   `json:"known"`
	Exists    bool   `json:"exists"`
	Signature string `json:"signature,omitempty"`
}

// Unknown is the degraded result used when the service cannot answer.
func Unknown() Result {
	return Result{}
}

// Lookup answers whether a member exists on a type.
type Lookup interface {
	Lookup(ctx context.Context, typeName, memberName string) Result
}

// Unavailable is a Lookup that always answers unknown. Used when the
// docs service is disabled.
var Unavailable Lookup = unavailable{}

type unavailable struct{}

func (unavailable) Lookup(ctx context.Context, typeName, memberName string) Result {
	return Unknown()
}

// HTTPClient queries a documentation service over HTTP with a bounded
// timeout per request.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   *logging.Logger
}

// NewHTTPClient creates a client for the given endpoint. The timeout
// bounds each individual lookup.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *logging.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type lookupResponse struct {
	Exists    bool   `json:"exists"`
	Signature string `json:"signature,omitempty"`
}

// Lookup issues GET <endpoint>/lookup?type=...&member=... and degrades
// to unknown on any failure.
func (c *HTTPClient) Lookup(ctx context.Context, typeName, memberName string) Result {
	u := c.endpoint + "/lookup?type=" + url.QueryEscape(typeName) +
		"&member=" + url.QueryEscape(memberName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Unknown()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Docs lookup failed", map[string]interface{}{
			"type":   typeName,
			"member": memberName,
			"error":  err.Error(),
		})
		return Unknown()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Unknown()
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Unknown()
	}

	return Result{Known: true, Exists: body.Exists, Signature: body.Signature}
}
