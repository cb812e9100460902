package collar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	http_utils "github.com/benmeehan/collar-sync/pkg/httpUtils"
)

// legacyConstraint selects APIs that only expose the single updateLocation endpoint.
const legacyConstraint = "< 2.0.0"

// LocationUpdate is the body accepted by the collar-control API.
type LocationUpdate struct {
	SerialNumber  string  `json:"serialNumber"`
	LastLatitude  float64 `json:"lastLatitude"`
	LastLongitude float64 `json:"lastLongitude"`
}

// Result is the outcome of one update call.
type Result struct {
	StatusCode int
	Body       []byte
}

// ClientInterface sends position updates to the collar-control API.
type ClientInterface interface {
	UpdateLocation(ctx context.Context, update LocationUpdate) (Result, error)
}

// Client is an HTTP client for the collar-control API.
type Client struct {
	baseURL    string
	token      string
	legacy     bool
	httpClient *http.Client
}

// NewClient creates a client for baseURL. apiVersion is the semantic version of
// the remote API; an empty value means the current keyed endpoint.
func NewClient(baseURL, apiVersion, token string, httpClient *http.Client) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid collar API base URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	legacy := false
	if apiVersion != "" {
		version, err := semver.NewVersion(apiVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid collar API version %q: %w", apiVersion, err)
		}
		constraint, err := semver.NewConstraint(legacyConstraint)
		if err != nil {
			return nil, err
		}
		legacy = constraint.Check(version)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		legacy:     legacy,
		httpClient: httpClient,
	}, nil
}

// Endpoint returns the URL that receives updates for deviceID.
func (c *Client) Endpoint(deviceID string) string {
	if c.legacy {
		return c.baseURL + "/updateLocation"
	}
	return c.baseURL + "/" + url.PathEscape(deviceID)
}

// UpdateLocation PUTs the update. Any HTTP status is returned as a Result;
// only transport failures (including ctx expiry) are errors.
func (c *Client) UpdateLocation(ctx context.Context, update LocationUpdate) (Result, error) {
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	resp, err := http_utils.DoJSON(ctx, c.httpClient, http.MethodPut, c.Endpoint(update.SerialNumber), headers, update)
	if err != nil {
		return Result{}, err
	}
	return Result{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
