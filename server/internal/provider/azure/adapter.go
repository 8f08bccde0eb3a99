// Package azure fetches builds and release deployments from the Azure DevOps
// REST API and converts them to pipeline records.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/pipewatch/pipewatch/pkg/types"
)

const (
	apiVersion     = "7.0"
	defaultTimeout = 15 * time.Second
	defaultRetries = 3
)

// ErrUnauthorized is returned when the API responds with HTTP 401. It is not
// retried.
var ErrUnauthorized = errors.New("azure: unauthorized")

// Options configures an Adapter.
type Options struct {
	// URL is the organisation URL, e.g. https://dev.azure.com/org.
	URL string
	// ReleaseURL is the release management URL, e.g. https://vsrm.dev.azure.com/org.
	// It defaults to URL.
	ReleaseURL string
	// Token is a personal access token.
	Token string
	// Definitions restricts builds to these definition ids. Empty means all.
	Definitions []int
	Timeout     time.Duration
	// Retries is the number of attempts per request, including the first.
	Retries    uint
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Adapter implements poller.Provider for Azure DevOps.
type Adapter struct {
	baseURL     string
	releaseURL  string
	definitions string
	retries     uint
	retryDelay  time.Duration
	client      *http.Client
	log         *slog.Logger
}

// NewAdapter creates an Azure DevOps adapter.
func NewAdapter(opts Options) *Adapter {
	a := &Adapter{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		releaseURL: strings.TrimRight(opts.ReleaseURL, "/"),
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		log:        opts.Logger,
	}
	if a.releaseURL == "" {
		a.releaseURL = a.baseURL
	}
	if a.retries == 0 {
		a.retries = defaultRetries
	}
	if a.retryDelay <= 0 {
		a.retryDelay = 500 * time.Millisecond
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	ids := make([]string, 0, len(opts.Definitions))
	for _, id := range opts.Definitions {
		ids = append(ids, strconv.Itoa(id))
	}
	a.definitions = strings.Join(ids, ",")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	a.client = &http.Client{
		Transport: &patRoundTripper{base: http.DefaultTransport, token: opts.Token},
		Timeout:   timeout,
	}
	return a
}

// FetchBuilds returns the project's builds, most recently queued first.
func (a *Adapter) FetchBuilds(ctx context.Context, project string) ([]types.PipelineRecord, error) {
	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("queryOrder", "queueTimeDescending")
	if a.definitions != "" {
		q.Set("definitions", a.definitions)
	}
	u := fmt.Sprintf("%s/%s/_apis/build/builds?%s", a.baseURL, url.PathEscape(project), q.Encode())

	var result struct {
		Value []build `json:"value"`
	}
	if err := a.get(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("azure: list builds of %q: %w", project, err)
	}
	out := make([]types.PipelineRecord, len(result.Value))
	for i, b := range result.Value {
		out[i] = b.toRecord()
	}
	return out, nil
}

// FetchDeployments returns the project's release deployments, newest first.
func (a *Adapter) FetchDeployments(ctx context.Context, project string) ([]types.PipelineRecord, error) {
	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("queryOrder", "descending")
	u := fmt.Sprintf("%s/%s/_apis/release/deployments?%s", a.releaseURL, url.PathEscape(project), q.Encode())

	var result struct {
		Value []deployment `json:"value"`
	}
	if err := a.get(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("azure: list deployments of %q: %w", project, err)
	}
	out := make([]types.PipelineRecord, len(result.Value))
	for i, d := range result.Value {
		out[i] = d.toRecord()
	}
	return out, nil
}

func (a *Adapter) get(ctx context.Context, u string, target interface{}) error {
	return retry.Do(
		func() error { return a.getOnce(ctx, u, target) },
		retry.Context(ctx),
		retry.Attempts(a.retries),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(a.retryDelay),
		retry.MaxDelay(10*a.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrUnauthorized) }),
		retry.OnRetry(func(n uint, err error) {
			a.log.Warn("azure: request failed, retrying", "attempt", n+1, "err", err)
		}),
	)
}

func (a *Adapter) getOnce(ctx context.Context, u string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("azure API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// patRoundTripper authenticates with a personal access token as the basic
// auth password.
type patRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *patRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req = req.Clone(req.Context())
		req.SetBasicAuth("", t.token)
	}
	return t.base.RoundTrip(req)
}
