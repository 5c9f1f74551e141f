package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOutput_Table(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	out.Print([]string{"TABLE", "ROWS"}, [][]string{{"Fact_Ventas", "1,204"}, {"Fact_Entregas", "0"}}, nil)

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "TABLE") || !strings.Contains(lines[0], "ROWS") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "-----") {
		t.Errorf("separator = %q", lines[1])
	}
	if !strings.Contains(lines[2], "1,204") {
		t.Errorf("row = %q", lines[2])
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestOutput_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(true, &stdout, &stderr)

	out.Print([]string{"A"}, [][]string{{"x"}}, map[string]int{"rows": 3})
	out.Line("ignored in json mode")

	var got map[string]int
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if got["rows"] != 3 {
		t.Errorf("rows = %d", got["rows"])
	}
}

func TestOutput_Messages(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	out.Success("done")
	out.Warn("time dimension Dim_Tiempo is empty")
	out.Error("boom")

	want := "done\nWarning: time dimension Dim_Tiempo is empty\nError: boom\n"
	if stderr.String() != want {
		t.Errorf("stderr = %q, want %q", stderr.String(), want)
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
}
