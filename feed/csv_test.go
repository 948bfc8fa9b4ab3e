package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestCSVParsesHeadersAndRows(t *testing.T) {
	path := writeTemp(t, "username,password\nalice,a1\nbob,b2\n")
	f, err := CSV(path, Sequential)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if f.Name() != "users.csv" {
		t.Errorf("Name() = %q, want users.csv", f.Name())
	}

	row, err := f.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row["username"] != "alice" || row["password"] != "a1" {
		t.Errorf("first row = %v, want alice/a1", row)
	}
	row, _ = f.Next()
	if row["username"] != "bob" {
		t.Errorf("second row = %v, want bob", row)
	}
	if f.HasNext() {
		t.Error("HasNext() = true after last row")
	}
}

func TestCSVStripsBOM(t *testing.T) {
	path := writeTemp(t, "\xef\xbb\xbfname\nx\n")
	f, err := CSV(path, Sequential)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	row, err := f.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row["name"] != "x" {
		t.Errorf("row = %v, want name=x", row)
	}
}

func TestCSVShortRecord(t *testing.T) {
	// Rows shorter than the header leave the missing keys unset.
	path := writeTemp(t, "a,b\n1\n")
	f, err := CSV(path, Sequential)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	row, err := f.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row["a"] != "1" {
		t.Errorf("row = %v, want a=1", row)
	}
	if _, ok := row["b"]; ok {
		t.Errorf("row = %v, want b unset", row)
	}
}

func TestCSVEmptyFile(t *testing.T) {
	path := writeTemp(t, "")
	if _, err := CSV(path, Sequential); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestCSVHeadersOnly(t *testing.T) {
	path := writeTemp(t, "a,b\n")
	if _, err := CSV(path, Sequential); err == nil {
		t.Fatal("expected error for file with no data rows")
	}
}

func TestCSVMissingFile(t *testing.T) {
	if _, err := CSV(filepath.Join(t.TempDir(), "nope.csv"), Sequential); err == nil {
		t.Fatal("expected error for missing file")
	}
}
