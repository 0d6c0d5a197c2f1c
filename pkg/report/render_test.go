package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/store"
)

func sampleSummaries() []store.Summary {
	return []store.Summary{
		{
			Tag:   "CosTime",
			Label: "load",
			Kind:  costime.KindEnd,
			Count: 2,
			Total: 350 * time.Millisecond,
			Min:   100 * time.Millisecond,
			Max:   250 * time.Millisecond,
			Last:  time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
		},
	}
}

func TestRowsFlattenToMillis(t *testing.T) {
	rows := Rows(sampleSummaries())
	require.Len(t, rows, 1)

	assert.Equal(t, Row{
		Tag:     "CosTime",
		Label:   "load",
		Kind:    "end",
		Count:   2,
		TotalMs: 350,
		MeanMs:  175,
		MinMs:   100,
		MaxMs:   250,
		Last:    "2024-03-09T14:05:07Z",
	}, rows[0])
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummaries(), "json"))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(350), rows[0].TotalMs)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummaries(), "yaml"))

	var rows []Row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "load", rows[0].Label)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSummaries(), "table"))

	out := buf.String()
	assert.Contains(t, out, "load")
	assert.Contains(t, out, "175.0")
	assert.Contains(t, out, "350")
	assert.Contains(t, out, "ago")
}

func TestRenderEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, "table"))
	assert.Equal(t, "No measurements recorded\n", buf.String())
}

func TestRenderUnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, nil, "csv"))
}
