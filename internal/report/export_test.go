package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/caffdose/internal/model"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]string{"": FormatText, "TEXT": FormatText, " json ": FormatJSON, "yaml": FormatYAML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestNewExportYAML(t *testing.T) {
	r, trace := exampleRegimen(t, model.Window{Start: 8, End: 20})
	cfg := model.PlanConfig{AbsorptionHalfLife: 0.5, EliminationHalfLife: 5, Max: 100, Min: 40, Start: 8, End: 20, Sleep: 23}
	var buf bytes.Buffer
	if err := WriteExport(&buf, NewExport(cfg, r, trace), FormatYAML); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}
	var decoded struct {
		FirstDose    float64  `yaml:"first_dose_mg"`
		FirstTime    string   `yaml:"first_dose_time"`
		BedtimeLevel *float64 `yaml:"bedtime_level_mg"`
		Doses        []struct {
			Intake   string  `yaml:"intake"`
			Amount   float64 `yaml:"amount_mg"`
			Adjusted bool    `yaml:"adjusted"`
		} `yaml:"doses"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v\n%s", err, buf.String())
	}
	if decoded.FirstDose != 129.15 || decoded.FirstTime != "07:44" {
		t.Fatalf("unexpected first dose %+v", decoded)
	}
	if len(decoded.Doses) != 2 || decoded.Doses[1].Intake != "2nd" || !decoded.Doses[1].Adjusted || decoded.Doses[1].Amount != 19.44 {
		t.Fatalf("unexpected doses %+v", decoded.Doses)
	}
	if decoded.BedtimeLevel == nil {
		t.Fatalf("expected bedtime level")
	}
	if strings.Contains(buf.String(), "notes:") {
		t.Fatalf("no notes expected for the example plan:\n%s", buf.String())
	}
}

func TestExportRecordJSON(t *testing.T) {
	rec := model.PlanRecord{
		ID:        3,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Config:    model.PlanConfig{Max: 100, Min: 40, Start: 8, End: 20, Sleep: 23},
		Doses:     []model.Dose{{Time: 7.726, Amount: 129.154966}},
	}
	var buf bytes.Buffer
	if err := WriteExport(&buf, []Export{ExportRecord(rec)}, FormatJSON); err != nil {
		t.Fatalf("WriteExport: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["id"] != float64(3) || decoded[0]["created_at"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected export %v", decoded)
	}
	if _, ok := decoded[0]["bedtime_level_mg"]; ok {
		t.Fatalf("stored plans carry no bedtime level")
	}
	if err := WriteExport(&buf, rec, FormatText); err == nil {
		t.Fatalf("expected error for text format")
	}
}
