package service

import (
	"hkcovid/internal/config"
	"hkcovid/internal/etl"
)

// Job names, also used as run-log keys.
const (
	BuildingJob = "building_list"
	CaseJob     = "case_details"
)

// Datetime columns of each dataset, named after normalization.
var (
	BuildingDateColumns = []string{"Last date of visit of the case(s)"}
	CaseDateColumns     = []string{"Report date", "Date of onset"}
)

// DefaultJobs returns the two dataset jobs in load order: the archived
// building list snapshot, then the live case details file.
func DefaultJobs(cfg *config.Config) []*etl.Job {
	timeout := cfg.HTTPTimeout.String()

	building := &etl.Job{
		Name:       BuildingJob,
		SourceType: "archive_csv",
		SourceCfg: etl.SourceConfig{
			"url":            cfg.BuildingURL,
			"archiveBaseURL": cfg.ArchiveBaseURL,
			"date":           cfg.Date,
			"timeout":        timeout,
		},
		Transforms: []etl.TransformConfig{
			{Type: "rename_columns"},
			{Type: "split_rows", Config: map[string]any{
				"column":    etl.DefaultSplitColumn,
				"delimiter": etl.DefaultSplitDelimiter,
			}},
			{Type: "convert_datetime", Config: map[string]any{
				"columns": BuildingDateColumns,
			}},
		},
		Target: etl.Target{
			Collection: cfg.BuildingCollection,
			UniqueKeys: cfg.BuildingUniqueKeys,
		},
	}

	cases := &etl.Job{
		Name:       CaseJob,
		SourceType: "csv_url",
		SourceCfg: etl.SourceConfig{
			"url":     cfg.CaseURL,
			"timeout": timeout,
		},
		Transforms: []etl.TransformConfig{
			{Type: "rename_columns"},
			{Type: "convert_datetime", Config: map[string]any{
				"columns": CaseDateColumns,
			}},
		},
		Target: etl.Target{
			Collection: cfg.CaseCollection,
			UniqueKeys: cfg.CaseUniqueKeys,
		},
	}

	return []*etl.Job{building, cases}
}
