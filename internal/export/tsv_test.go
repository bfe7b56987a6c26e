package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/TapAlign/internal/metadata"
	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/pkg/models"
)

var testInfo = metadata.FileInfo{
	Subject: "S13", Group: "PWS", GroupCode: 1,
	ConditionLabel: "PeriodicAlong", ConditionCode: 2, Condition: model.Synchronous,
	File: "S13_0009-BaT",
}

func TestRows(t *testing.T) {
	records := []model.MatchRecord{
		{Trial: 3, Beat: 0, BeatTime: 1.0, TapTime: 1.05, Rule: model.RuleSynchronous},
		{Trial: 3, Beat: 2, BeatTime: 3.0, TapTime: 2.95, Rule: model.RuleSynchronous},
	}

	rows := Rows(testInfo, records)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	expected := models.MatchRow{
		Subject: "S13", Group: 1, Condition: 2, File: "S13_0009-BaT",
		Trial: 3, BeatNb: 3, BeatInstant: 3.0, TapInstant: 2.95, Rule: "synchronous",
	}
	if rows[1] != expected {
		t.Errorf("Rows()[1] = %+v, expected %+v", rows[1], expected)
	}
	if rows[0].BeatNb != 1 {
		t.Errorf("BeatNb should be 1-based, got %d", rows[0].BeatNb)
	}
}

func TestWrite(t *testing.T) {
	rows := []models.MatchRow{
		{Subject: "S13", Group: 1, Condition: 2, File: "f", Trial: 1, BeatNb: 1, BeatInstant: 1.0, TapInstant: 1.0453514739229024},
	}

	var buf bytes.Buffer
	if err := Write(&buf, rows, true); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	expected := "Subject\tGroup\tCondition\tFile\tTrial\tBeatNb\tBeatInstant\tTapInstant\n" +
		"S13\t1\t2\tf\t1\t1\t1\t1.0453514739229024\n"
	if buf.String() != expected {
		t.Errorf("Write() =\n%q\nexpected\n%q", buf.String(), expected)
	}

	buf.Reset()
	if err := Write(&buf, rows, false); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if strings.HasPrefix(buf.String(), "Subject") {
		t.Error("header written when not requested")
	}
}

func TestAppendFileWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.txt")
	rows := Rows(testInfo, []model.MatchRecord{{Trial: 1, Beat: 0, BeatTime: 1, TapTime: 1.1}})

	for i := 0; i < 2; i++ {
		if err := AppendFile(path, rows); err != nil {
			t.Fatalf("AppendFile() error: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", lines)
	}
	if lines[0] != Header {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[1] != lines[2] {
		t.Errorf("appended rows differ: %q vs %q", lines[1], lines[2])
	}
}

func TestAppendFileToEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := AppendFile(path, nil); err != nil {
		t.Fatalf("AppendFile() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != Header+"\n" {
		t.Errorf("expected header only, got %q", data)
	}
}

func TestWriteFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	if err := os.WriteFile(path, []byte("old content\n"), 0644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}
	if err := WriteFile(path, nil); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != Header+"\n" {
		t.Errorf("WriteFile() left %q", data)
	}
}
