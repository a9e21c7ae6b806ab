package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zulandar/skimmer/internal/archive"
)

// Columns is the CSV header.
var Columns = []string{
	"ts", "date", "time", "user_id", "user_name", "text",
	"thread_ts", "reply_count", "is_reply", "reactions", "attachments",
}

// WriteCSV writes msgs as RFC 4180 CSV with a header row.
func WriteCSV(w io.Writer, msgs []archive.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, m := range msgs {
		if err := cw.Write(csvRecord(m)); err != nil {
			return fmt.Errorf("export: write csv row %s: %w", m.TS, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

func csvRecord(m archive.Message) []string {
	return []string{
		m.TS,
		m.MessageDate,
		m.MessageTime,
		m.UserID,
		m.UserName,
		m.Text,
		m.ThreadTS,
		strconv.Itoa(m.ReplyCount),
		strconv.FormatBool(m.IsReply),
		reactionsField(m.Reactions),
		attachmentsField(m.Attachments),
	}
}

// reactionsField renders reactions as "emoji:count" pairs separated by "; ".
func reactionsField(rs []archive.Reaction) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, fmt.Sprintf("%s:%d", r.Emoji, r.Count))
	}
	return strings.Join(parts, "; ")
}

func attachmentsField(as []archive.Attachment) string {
	parts := make([]string, 0, len(as))
	for _, a := range as {
		switch {
		case a.Title != "":
			parts = append(parts, a.Title)
		case a.Type != "":
			parts = append(parts, a.Type+":"+a.Name)
		default:
			parts = append(parts, a.Name)
		}
	}
	return strings.Join(parts, "; ")
}
