package etl

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// staticSource serves a fixed extract, or fails.
type staticSource struct {
	typ     string
	extract *Extract
	err     error
}

func (s *staticSource) Spec() SourceSpec { return SourceSpec{Type: s.typ, Label: s.typ} }

func (s *staticSource) Fetch(context.Context, SourceConfig) (*Extract, error) {
	return s.extract, s.err
}

func buildingExtract() *Extract {
	tbl := NewTable("District", "Building name", "Last date of visit of the case(s)", "Related cases")
	tbl.Append("Kwun Tong", "Block A", "28/02/2021", "101,102")
	tbl.Append("Sha Tin", "Block B", "", nil)
	return &Extract{Table: tbl, Version: "20210301-0923", Skipped: 1}
}

func buildingJob(sourceType string) *Job {
	return &Job{
		Name:       "building_list",
		SourceType: sourceType,
		Transforms: []TransformConfig{
			{Type: "rename_columns"},
			{Type: "split_rows", Config: map[string]any{"column": "Related cases", "delimiter": ","}},
			{Type: "convert_datetime", Config: map[string]any{"columns": []string{"Last date of visit of the case(s)"}}},
		},
		Target: Target{Collection: "building_list"},
	}
}

func TestEngine_RunSync(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_static", extract: buildingExtract()})
	db := newFakeDB()
	engine := &Engine{Dest: &MongoDestination{DB: db}}

	res, err := engine.RunSync(context.Background(), buildingJob("test_static"))

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "20210301-0923", res.Version)
	assert.Equal(t, 2, res.RowsRead)
	assert.Equal(t, 1, res.RowsSkipped)
	assert.Equal(t, 3, res.RowsOut)
	assert.Equal(t, 3, res.RowsWritten)

	docs := db.colls["building_list"].docs
	require.Len(t, docs, 3)
	assert.Equal(t, "101", field(docs[0], "Related cases"))
	assert.Equal(t, "102", field(docs[1], "Related cases"))
	assert.Equal(t, "None", field(docs[2], "Related cases"))
	assert.Equal(t, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC), field(docs[0], "Last date of visit of the case(s)"))
	assert.Nil(t, field(docs[2], "Last date of visit of the case(s)"))
}

func TestEngine_FetchErrorAborts(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_failing", err: errors.New("http 500: boom")})
	db := newFakeDB()
	engine := &Engine{Dest: &MongoDestination{DB: db}}

	res, err := engine.RunSync(context.Background(), buildingJob("test_failing"))

	require.Error(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "fetch building_list")
	assert.Empty(t, db.colls)
}

func TestEngine_UnknownSource(t *testing.T) {
	engine := &Engine{Dest: &DiscardDestination{}}

	_, err := engine.RunSync(context.Background(), buildingJob("nope"))

	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestEngine_LoadErrorAborts(t *testing.T) {
	RegisterSource(&staticSource{typ: "test_static_load", extract: buildingExtract()})
	db := newFakeDB()
	db.Collection("building_list").(*fakeCollection).err = errors.New("server selection timeout")
	engine := &Engine{Dest: &MongoDestination{DB: db}}

	res, err := engine.RunSync(context.Background(), buildingJob("test_static_load"))

	require.Error(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "20210301-0923", res.Version)
}

func TestEngine_ReportsMissingColumns(t *testing.T) {
	tbl := NewTable("District", "Building name")
	tbl.Append("Kwun Tong", "Block A")
	RegisterSource(&staticSource{typ: "test_renamed_upstream", extract: &Extract{Table: tbl}})

	core, logs := observer.New(zap.WarnLevel)
	engine := &Engine{Dest: &DiscardDestination{}, Logger: zap.New(core)}

	res, err := engine.RunSync(context.Background(), buildingJob("test_renamed_upstream"))

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []string{"Related cases", "Last date of visit of the case(s)"}, res.MissingColumns)

	warned := logs.FilterMessage("configured column missing").All()
	require.Len(t, warned, 2)
	assert.Equal(t, "Related cases", warned[0].ContextMap()["column"])
	assert.Equal(t, "building_list", warned[0].ContextMap()["job"])
}

func TestMissingColumns(t *testing.T) {
	tbl := NewTable("Report date")
	dt := &DatetimeTransform{Columns: []string{"Report date", "Date of onset"}}

	assert.Equal(t, []string{"Date of onset"}, MissingColumns(dt, tbl))
	assert.Nil(t, MissingColumns(RenameColumnsTransform{}, tbl))
}
