package probes

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
)

type httpProbe struct {
	name   string
	url    string
	client *retryablehttp.Client
}

// NewHTTPFetch probes the image server with a synthetic request: a 2xx
// answer for the given URL means the daemon is functionally serving, not
// merely bound. One quick retry smooths over an accept-queue blip
// without masking a dead server.
func NewHTTPFetch(daemon, url string, logger logging.Logger) Probe {
	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.Logger = nil
	logger.Debugf("HTTP fetch probe configured for %s, url: %s", daemon, url)
	return &httpProbe{name: daemon + " serving content", url: url, client: client}
}

func (p *httpProbe) Name() string {
	return p.name
}

func (p *httpProbe) Run(ctx context.Context) (bool, string) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", p.url, nil)
	if err != nil {
		return false, fmt.Sprintf("failed to build request for %s: %v", p.url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("HTTP request failed for %s: %v", p.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, p.url)
	}
	return false, fmt.Sprintf("unexpected HTTP %d from %s", resp.StatusCode, p.url)
}
