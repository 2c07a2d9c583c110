package sources

import (
	"context"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"hkcovid/internal/etl"
)

// ── HTTP helpers ────────────────────────────────────────────
// Shared by the CSV-over-HTTP sources. Requests are never retried.

// DefaultTimeout bounds a single HTTP request when the job sets none.
const DefaultTimeout = 60 * time.Second

const userAgent = "hkcovid-etl/1.0"

// newClient builds a resty client for one fetch.
func newClient(cfg etl.SourceConfig) *resty.Client {
	return resty.New().
		SetTimeout(timeoutOf(cfg)).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent)
}

// timeoutOf reads cfg["timeout"] as a time.Duration or duration string.
func timeoutOf(cfg etl.SourceConfig) time.Duration {
	switch v := cfg["timeout"].(type) {
	case time.Duration:
		if v > 0 {
			return v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// fetchCSV issues a GET and decodes the response body as CSV.
func fetchCSV(ctx context.Context, client *resty.Client, url string, query map[string]string) (*etl.Table, int, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, 0, errors.Wrap(err, "http request")
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(body, 1024))
		return nil, 0, errors.Errorf("http %d: %s", resp.StatusCode(), string(msg))
	}

	return decodeCSV(body)
}
