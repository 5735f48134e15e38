package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/portalshot/internal/model"
	"github.com/xuri/excelize/v2"
)

func sampleChanges() []model.ChangeRecord {
	return []model.ChangeRecord{
		{URL: "https://a.com", Current: "ffff0000ffff0000", Status: model.StatusFirstEntry},
		{URL: "http://b.com", Status: model.StatusError},
		{URL: "https://a.com", Previous: "ffff0000ffff0000", Current: "ffff0000ffff0000", Status: model.StatusHashUnchanged},
	}
}

// TestWriteChangeLog tests the change log writer.
func TestWriteChangeLog(t *testing.T) {
	t.Parallel()

	t.Run("writes CSV with fixed columns", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "hash_comparison_logs.csv")
		if err := WriteChangeLog(path, sampleChanges()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		want := "URL,Previous Hash,Current Hash,Status\n" +
			"https://a.com,,ffff0000ffff0000,First entry\n" +
			"http://b.com,,,Error during processing\n" +
			"https://a.com,ffff0000ffff0000,ffff0000ffff0000,Hash unchanged\n"
		if string(data) != want {
			t.Errorf("unexpected change log:\n%s\nwant:\n%s", data, want)
		}
	})

	t.Run("empty run still writes the header", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "log.csv")
		if err := WriteChangeLog(path, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "URL,Previous Hash,Current Hash,Status\n" {
			t.Errorf("unexpected change log %q", data)
		}
	})

	t.Run("writes XLSX for an xlsx path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "log.xlsx")
		if err := WriteChangeLog(path, sampleChanges()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		f, err := excelize.OpenFile(path)
		if err != nil {
			t.Fatalf("failed to open workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows(changeLogSheet)
		if err != nil {
			t.Fatalf("failed to read rows: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("expected 4 rows, got %d", len(rows))
		}
		if rows[0][0] != "URL" || rows[0][3] != "Status" {
			t.Errorf("unexpected header %v", rows[0])
		}
		if rows[2][0] != "http://b.com" || rows[2][len(rows[2])-1] != "Error during processing" {
			t.Errorf("unexpected error row %v", rows[2])
		}
	})
}
