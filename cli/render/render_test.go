package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

type testStatus struct {
	Engine string `json:"engine"`
	Rows   int    `json:"rows"`
	OK     bool   `json:"ok"`
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, &buf)

	if err := r.Render(testStatus{Engine: "fraud", Rows: 42, OK: true}); err != nil {
		t.Fatalf("render: %v", err)
	}

	var got testStatus
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Engine != "fraud" || got.Rows != 42 {
		t.Errorf("got %+v", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, &buf)

	if err := r.Render(map[string]string{"engine": "fraud"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "engine: fraud") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render(testStatus{Engine: "fraud", Rows: 42, OK: true}); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "engine:") || !strings.Contains(out, "fraud") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	rows := []testStatus{
		{Engine: "fraud", Rows: 42, OK: true},
		{Engine: "ops", Rows: 7, OK: false},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "engine") {
		t.Errorf("missing header row: %q", out)
	}
	if !strings.Contains(out, "fraud") || !strings.Contains(out, "ops") {
		t.Errorf("missing data rows: %q", out)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render([]testStatus{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderer_Table_TimeField(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	data := struct {
		At time.Time `json:"at"`
	}{At: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)}

	if err := r.Render(data); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "2026-03-07") {
		t.Errorf("output = %q", buf.String())
	}
}
