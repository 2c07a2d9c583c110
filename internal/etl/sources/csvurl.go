package sources

import (
	"context"

	"github.com/pkg/errors"

	"hkcovid/internal/etl"
)

// ── CSV URL Source ──────────────────────────────────────────
// Reads the current version of a CSV file served over HTTP.

type csvURLSource struct{}

func init() { etl.RegisterSource(&csvURLSource{}) }

func (s *csvURLSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_url",
		Label: "CSV URL",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Required: true, Help: "Full URL of the CSV file"},
			{Key: "timeout", Label: "Timeout", Default: DefaultTimeout.String()},
		},
	}
}

func (s *csvURLSource) Fetch(ctx context.Context, cfg etl.SourceConfig) (*etl.Extract, error) {
	url := cfg.String("url", "")
	if url == "" {
		return nil, errors.New("url is required")
	}

	table, skipped, err := fetchCSV(ctx, newClient(cfg), url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}
	return &etl.Extract{Table: table, Skipped: skipped}, nil
}
