package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/costime/pkg/store"
)

// Row is a summary with durations flattened to milliseconds
type Row struct {
	Tag     string  `json:"tag" yaml:"tag"`
	Label   string  `json:"label" yaml:"label"`
	Kind    string  `json:"kind" yaml:"kind"`
	Count   int64   `json:"count" yaml:"count"`
	TotalMs int64   `json:"total_ms" yaml:"total_ms"`
	MeanMs  float64 `json:"mean_ms" yaml:"mean_ms"`
	MinMs   int64   `json:"min_ms" yaml:"min_ms"`
	MaxMs   int64   `json:"max_ms" yaml:"max_ms"`
	Last    string  `json:"last" yaml:"last"`
}

// Rows converts summaries for output
func Rows(sums []store.Summary) []Row {
	rows := make([]Row, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, Row{
			Tag:     s.Tag,
			Label:   s.Label,
			Kind:    string(s.Kind),
			Count:   s.Count,
			TotalMs: s.Total.Milliseconds(),
			MeanMs:  float64(s.Mean()) / float64(time.Millisecond),
			MinMs:   s.Min.Milliseconds(),
			MaxMs:   s.Max.Milliseconds(),
			Last:    s.Last.Format(time.RFC3339),
		})
	}
	return rows
}

// Render writes summaries as "table", "json" or "yaml"
func Render(w io.Writer, sums []store.Summary, format string) error {
	rows := Rows(sums)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()

	case "table", "":
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No measurements recorded")
			return err
		}

		table := tablewriter.NewWriter(w)
		table.Header("Tag", "Label", "Kind", "Count", "Total ms", "Mean ms", "Min ms", "Max ms", "Last")
		for i, r := range rows {
			err := table.Append([]string{
				r.Tag,
				r.Label,
				r.Kind,
				humanize.Comma(r.Count),
				humanize.Comma(r.TotalMs),
				strconv.FormatFloat(r.MeanMs, 'f', 1, 64),
				strconv.FormatInt(r.MinMs, 10),
				strconv.FormatInt(r.MaxMs, 10),
				humanize.Time(sums[i].Last),
			})
			if err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}
		return table.Render()

	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
