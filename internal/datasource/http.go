package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// TracePath is the endpoint a trace server answers range requests on.
const TracePath = "/trace"

// HTTPFetcher requests a trace from a server's /trace endpoint. There is no
// retry and no timeout beyond what the client and context impose.
type HTTPFetcher struct {
	endpoint *url.URL
	client   *http.Client
	opts     loader.ParseOptions
}

// NewHTTPFetcher returns a fetcher for base, which is either a server root or
// the full /trace URL. A nil client uses http.DefaultClient. opts controls
// warnings for response elements that fail to decode.
func NewHTTPFetcher(base string, client *http.Client, opts loader.ParseOptions) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid trace URL %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid trace URL %q: scheme must be http or https", base)
	}
	if !strings.HasSuffix(u.Path, TracePath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + TracePath
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{endpoint: u, client: client, opts: opts}, nil
}

// URL returns the request URL for r.
func (f *HTTPFetcher) URL(r model.Range) string {
	u := *f.endpoint
	q := u.Query()
	q.Set("start", strconv.FormatFloat(r.Start, 'g', -1, 64))
	q.Set("end", strconv.FormatFloat(r.End, 'g', -1, 64))
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, r model.Range) ([]model.RawInstruction, error) {
	defer metrics.Timer(metrics.Fetch)()

	target := f.URL(r)
	fail := func(err error) error {
		return &model.FetchError{Source: target, Err: err}
	}

	if err := r.Validate(); err != nil {
		return nil, fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fail(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fail(fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	raw, err := loader.ParseTrace(resp.Body, f.opts)
	if err != nil {
		return nil, fail(err)
	}
	return raw, nil
}
