package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/stewardlens/stewardlens/agent/internal/config"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

const defaultScrapeTimeout = 15 * time.Second

// Canonical keys for ScrapeResult.Values. Counts are donors, amounts are in
// the congregation's currency.
const (
	ValueGivingCurrent     = "giving_current"
	ValueGivingPrevious    = "giving_previous"
	ValueDonorsTotal       = "donors_total"
	ValueDonorsRetained    = "donors_retained"
	ValueDonorsLost        = "donors_lost"
	ValueRecurringDonors   = "recurring_donors"
	ValueRecurringRevenue  = "recurring_revenue_monthly"
	ValueNewDonorsCurrent  = "new_donors_current"
	ValueNewDonorsPrevious = "new_donors_previous"
)

// ScrapeResult is the normalized output of one scrape cycle for a single
// congregation. A source either reports raw Values, from which the compute
// engine derives the four metric groups, or a ready-made Input.
type ScrapeResult struct {
	SourceID   string
	SourceType string
	Name       string
	ScrapedAt  time.Time

	// PeriodID identifies the reporting period the values belong to
	// (e.g. "2026-09"). Empty when the source does not publish one.
	PeriodID string

	// ComparisonLabel is attached to the derived giving trend.
	ComparisonLabel string

	// Values holds raw gauges keyed by the Value* constants. A key is absent
	// when the source did not publish it.
	Values map[string]float64

	// Input is set by sources that already publish the metric groups.
	Input *finhealth.Input

	// Err is non-nil if the scrape itself failed (connectivity, auth, parse).
	Err error
}

// Value returns the named value and whether it was published.
func (r *ScrapeResult) Value(key string) (float64, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Scraper is the common interface implemented by every source scraper.
// Scrape reports fetch problems through ScrapeResult.Err; the returned error
// is reserved for programming errors.
type Scraper interface {
	Scrape(ctx context.Context) (*ScrapeResult, error)
}

// New returns the appropriate Scraper for the given source configuration.
// It builds the HTTP client once and reuses it across scrape calls.
func New(src config.Source) (Scraper, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
	}
	switch src.Type {
	case config.SourcePrometheus:
		return &promScraper{src: src, client: client}, nil
	case config.SourceJSON:
		return &jsonScraper{src: src, client: client}, nil
	default:
		return nil, fmt.Errorf("scraper: unsupported type %q", src.Type)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: src.Auth,
		},
		Timeout: defaultScrapeTimeout,
	}, nil
}

// get performs an HTTP GET with the given Accept header and returns the
// response body. The caller must close it.
func get(ctx context.Context, client *http.Client, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	body, err := get(ctx, client, url, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseMetrics(body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// metricValue returns the value of a counter, gauge or untyped sample.
func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}

// labelValue returns the value of the named label on m, or "".
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// sumFamily adds up every sample in mf whose label matches. An empty label
// name matches all samples. NaN and infinite samples are skipped. The bool
// is false when no sample matched.
func sumFamily(mf *dto.MetricFamily, label, value string) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	var (
		total float64
		found bool
	)
	for _, m := range mf.GetMetric() {
		if label != "" && labelValue(m, label) != value {
			continue
		}
		if v, ok := metricValue(m); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			total += v
			found = true
		}
	}
	return total, found
}

// newResult initialises an empty ScrapeResult for src.
func newResult(src config.Source) *ScrapeResult {
	return &ScrapeResult{
		SourceID:        src.ID,
		SourceType:      src.Type,
		Name:            src.DisplayName(),
		ComparisonLabel: src.ComparisonLabel,
		ScrapedAt:       time.Now().UTC(),
		Values:          make(map[string]float64),
	}
}
