package sources

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"hkcovid/internal/etl"
)

// ── Historical Archive Source ───────────────────────────────
// Fetches one archived snapshot of a periodically updated file from the
// data.gov.hk historical archive. The snapshot is the first version the
// archive lists for the requested day.

// DefaultArchiveBaseURL is the data.gov.hk historical archive API root.
const DefaultArchiveBaseURL = "https://api.data.gov.hk/v1/historical-archive"

// ErrNoVersion is returned when the archive lists no version for the day.
var ErrNoVersion = errors.New("no archived version")

const dateLayout = "20060102"

type archiveSource struct{}

func init() { etl.RegisterSource(&archiveSource{}) }

func (s *archiveSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "archive_csv",
		Label: "Historical Archive CSV",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "File URL", Required: true, Help: "URL of the archived file"},
			{Key: "archiveBaseURL", Label: "Archive API", Default: DefaultArchiveBaseURL},
			{Key: "date", Label: "Date", Help: "Day to load as YYYYMMDD (default: yesterday)"},
			{Key: "timeout", Label: "Timeout", Default: DefaultTimeout.String()},
		},
	}
}

type versionList struct {
	Timestamps []string `json:"timestamps"`
}

func (s *archiveSource) Fetch(ctx context.Context, cfg etl.SourceConfig) (*etl.Extract, error) {
	fileURL := cfg.String("url", "")
	if fileURL == "" {
		return nil, errors.New("url is required")
	}
	base := strings.TrimRight(cfg.String("archiveBaseURL", DefaultArchiveBaseURL), "/")

	date := cfg.String("date", "")
	if date == "" {
		date = Yesterday(time.Now())
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, errors.Errorf("invalid date %q, want YYYYMMDD", date)
	}

	client := newClient(cfg)
	version, err := resolveVersion(ctx, client, base, fileURL, date)
	if err != nil {
		return nil, err
	}

	table, skipped, err := fetchCSV(ctx, client, base+"/get-file", map[string]string{
		"url":  fileURL,
		"time": version,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get-file %s", version)
	}
	return &etl.Extract{Table: table, Version: version, Skipped: skipped}, nil
}

// resolveVersion returns the first archived timestamp of fileURL on date.
func resolveVersion(ctx context.Context, client *resty.Client, base, fileURL, date string) (string, error) {
	var versions versionList
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":   fileURL,
			"start": date,
			"end":   date,
		}).
		ForceContentType("application/json").
		SetResult(&versions).
		Get(base + "/list-file-versions")
	if err != nil {
		return "", errors.Wrap(err, "list-file-versions")
	}
	if resp.StatusCode() >= 400 {
		return "", errors.Errorf("list-file-versions: http %d: %s", resp.StatusCode(), truncate(resp.String(), 1024))
	}
	if len(versions.Timestamps) == 0 {
		return "", errors.Wrapf(ErrNoVersion, "%s on %s", fileURL, date)
	}
	return versions.Timestamps[0], nil
}

// Yesterday returns the calendar day before now as YYYYMMDD.
func Yesterday(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(dateLayout)
}

// VersionDate returns the date part of an archive timestamp
// ("20210301-0923" → "20210301").
func VersionDate(version string) string {
	date, _, _ := strings.Cut(version, "-")
	return date
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
