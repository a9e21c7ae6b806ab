// Package export renders the archive for download: a JSON document with a
// metadata envelope, a flat CSV, and an analysis document that regroups
// messages into threads.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// Format names an export rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatAnalysis Format = "analysis"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCSV, FormatAnalysis}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if slices.Contains(Formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want json, csv or analysis)", s)
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatCSV {
		return "csv"
	}
	return "json"
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Metadata describes the export.
type Metadata struct {
	ChannelID    string             `json:"channelId,omitempty"`
	ChannelName  string             `json:"channelName,omitempty"`
	ExportedAt   time.Time          `json:"exportedAt"`
	MessageCount int                `json:"messageCount"`
	ThreadCount  int                `json:"threadCount"`
	UserCount    int                `json:"userCount"`
	TimeRange    *archive.TimeRange `json:"timeRange,omitempty"`
	OldestTS     string             `json:"oldestTs,omitempty"`
	NewestTS     string             `json:"newestTs,omitempty"`
}

// Source is what an export is built from.
type Source struct {
	Store       *archive.Store
	ChannelID   string
	ChannelName string
	TimeRange   *archive.TimeRange
	Now         time.Time
}

// Sorted returns the stored messages ordered by ts.
func Sorted(store *archive.Store) []archive.Message {
	msgs := store.Snapshot()
	slices.SortStableFunc(msgs, func(a, b archive.Message) int {
		return timestamp.Compare(a.TS, b.TS)
	})
	return msgs
}

func metadata(src Source, msgs []archive.Message) Metadata {
	md := Metadata{
		ChannelID:    src.ChannelID,
		ChannelName:  src.ChannelName,
		ExportedAt:   src.Now.UTC(),
		MessageCount: len(msgs),
		ThreadCount:  src.Store.Threads().Len(),
		UserCount:    len(src.Store.Users()),
		TimeRange:    src.TimeRange,
	}
	if len(msgs) > 0 {
		md.OldestTS = msgs[0].TS
		md.NewestTS = msgs[len(msgs)-1].TS
	}
	return md
}

// Write renders src in format f.
func Write(w io.Writer, f Format, src Source) error {
	if src.Now.IsZero() {
		src.Now = time.Now()
	}
	msgs := Sorted(src.Store)
	switch f {
	case FormatJSON:
		return writeJSON(w, document{
			Metadata: metadata(src, msgs),
			Messages: msgs,
			Threads:  src.Store.Threads().Serialize(),
		})
	case FormatCSV:
		return WriteCSV(w, msgs)
	case FormatAnalysis:
		return writeJSON(w, Analyze(src, msgs))
	}
	return fmt.Errorf("export: unknown format %q", f)
}

type document struct {
	Metadata Metadata                   `json:"metadata"`
	Messages []archive.Message          `json:"messages"`
	Threads  []archive.SerializedThread `json:"threads"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}
