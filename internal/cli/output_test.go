package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{w: &buf, errW: &buf}

	out.Table(
		[]string{"NAME", "STATUS"},
		[][]string{
			{"model", "SUCCEEDED"},
			{"store", "QUEUED"},
		},
	)

	got := buf.String()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	if !strings.Contains(lines[2], "model") || !strings.Contains(lines[2], "SUCCEEDED") {
		t.Errorf("unexpected data line: %q", lines[2])
	}
}

func TestOutput_PrintJSONMode(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{jsonMode: true, w: &buf, errW: &buf}

	out.Print([]string{"ID"}, [][]string{{"1"}}, map[string]any{"id": "1", "status": "RUNNING"})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output should be valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["status"] != "RUNNING" {
		t.Errorf("unexpected JSON payload: %v", decoded)
	}
	if strings.Contains(buf.String(), "ID\t") {
		t.Error("json mode should not render a table")
	}
}

func TestOutput_Messages(t *testing.T) {
	var data, msgs bytes.Buffer
	out := &Output{w: &data, errW: &msgs}

	out.Success("run started")
	out.Error("run not found")

	if data.Len() != 0 {
		t.Errorf("messages should go to stderr, stdout got: %q", data.String())
	}
	if !strings.Contains(msgs.String(), "run started") {
		t.Errorf("missing success message: %q", msgs.String())
	}
	if !strings.Contains(msgs.String(), "Error: run not found") {
		t.Errorf("missing error message: %q", msgs.String())
	}
}
