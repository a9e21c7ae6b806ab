package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Dir writes export files into a directory.
type Dir struct {
	Path string
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the name an export of channel in format f taken at t
// is saved under.
func FileName(channel string, f Format, t time.Time) string {
	channel = strings.Trim(unsafeName.ReplaceAllString(channel, "-"), "-")
	if channel == "" {
		channel = "channel"
	}
	suffix := ""
	if f == FormatAnalysis {
		suffix = "-analysis"
	}
	return fmt.Sprintf("skimmer-%s-%s%s.%s", channel, t.UTC().Format("20060102-150405"), suffix, f.Extension())
}

// Save renders src in format f into the directory and returns the file path.
func (d Dir) Save(f Format, src Source) (string, error) {
	if src.Now.IsZero() {
		src.Now = time.Now()
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", d.Path, err)
	}
	name := src.ChannelName
	if name == "" {
		name = src.ChannelID
	}
	path := filepath.Join(d.Path, FileName(name, f, src.Now))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	if err := Write(w, f, src); err != nil {
		file.Close()
		return "", err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", path, err)
	}
	return path, nil
}
