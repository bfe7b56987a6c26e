// Package export writes match rows as the tab-separated table consumed by the
// statistics scripts. Column order and header text must not change.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/TapAlign/internal/metadata"
	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/pkg/models"
)

// Columns of the export table.
var Columns = []string{"Subject", "Group", "Condition", "File", "Trial", "BeatNb", "BeatInstant", "TapInstant"}

// Header is the first line of an export file, without the newline.
var Header = strings.Join(Columns, "\t")

// Rows converts the match records of one file into export rows. BeatNb is
// 1-based.
func Rows(info metadata.FileInfo, records []model.MatchRecord) []models.MatchRow {
	rows := make([]models.MatchRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, models.MatchRow{
			Subject:     info.Subject,
			Group:       info.GroupCode,
			Condition:   info.ConditionCode,
			File:        info.File,
			Trial:       r.Trial,
			BeatNb:      r.Beat + 1,
			BeatInstant: r.BeatTime,
			TapInstant:  r.TapTime,
			Rule:        string(r.Rule),
		})
	}
	return rows
}

// Write writes rows to w, preceded by the header when header is true.
func Write(w io.Writer, rows []models.MatchRow, header bool) error {
	bw := bufio.NewWriter(w)
	if header {
		if _, err := bw.WriteString(Header + "\n"); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if _, err := bw.WriteString(formatRow(r)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// AppendFile appends rows to path, writing the header first if the file is
// new or empty.
func AppendFile(path string, rows []models.MatchRow) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat export file: %w", err)
	}
	if err := Write(f, rows, info.Size() == 0); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return f.Close()
}

// WriteFile replaces path with a header and rows.
func WriteFile(path string, rows []models.MatchRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if err := Write(f, rows, true); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return f.Close()
}

func formatRow(r models.MatchRow) string {
	fields := []string{
		r.Subject,
		strconv.Itoa(r.Group),
		strconv.Itoa(r.Condition),
		r.File,
		strconv.Itoa(r.Trial),
		strconv.Itoa(r.BeatNb),
		strconv.FormatFloat(r.BeatInstant, 'g', -1, 64),
		strconv.FormatFloat(r.TapInstant, 'g', -1, 64),
	}
	return strings.Join(fields, "\t") + "\n"
}
