package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportCmd_WritesFormats(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seedArchive(t, dbPath, sampleMessages()...)
	outDir := t.TempDir()

	out, err := execCmd(t, "", "export", "-c", configPath, "-f", "json,csv,analysis", "-o", outDir)
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	if strings.Count(out, "Wrote ") != 3 {
		t.Errorf("expected three written files, got:\n%s", out)
	}

	jsonFiles, _ := filepath.Glob(filepath.Join(outDir, "skimmer-general-*[0-9].json"))
	if len(jsonFiles) != 1 {
		t.Fatalf("json files = %v", jsonFiles)
	}
	data, err := os.ReadFile(jsonFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Metadata struct {
			ChannelID    string `json:"channelId"`
			MessageCount int    `json:"messageCount"`
			ThreadCount  int    `json:"threadCount"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Metadata.ChannelID != "C0123" || doc.Metadata.MessageCount != 3 || doc.Metadata.ThreadCount != 1 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}

	if files, _ := filepath.Glob(filepath.Join(outDir, "*.csv")); len(files) != 1 {
		t.Errorf("csv files = %v", files)
	}
	if files, _ := filepath.Glob(filepath.Join(outDir, "*-analysis.json")); len(files) != 1 {
		t.Errorf("analysis files = %v", files)
	}
}

func TestExportCmd_DefaultDirFromConfig(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seedArchive(t, dbPath, sampleMessages()...)

	if _, err := execCmd(t, "", "export", "-c", configPath); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(configPath), "exports", "*.json"))
	if len(files) != 1 {
		t.Errorf("files = %v", files)
	}
}

func TestExportCmd_EmptyArchive(t *testing.T) {
	configPath, _ := writeConfig(t)
	_, err := execCmd(t, "", "export", "-c", configPath)
	if err == nil || !strings.Contains(err.Error(), "nothing to export") {
		t.Fatalf("expected empty archive error, got %v", err)
	}
}

func TestExportCmd_UnknownFormat(t *testing.T) {
	configPath, _ := writeConfig(t)
	_, err := execCmd(t, "", "export", "-c", configPath, "-f", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestRunCmd_UnknownExportFormat(t *testing.T) {
	_, err := execCmd(t, "", "run", "--export", "pdf")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}
