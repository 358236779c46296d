package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleID = "3f2c8a4e-1b6d-4c2a-9e7f-5a1b2c3d4e5f"

const sampleDossier = `{
  "id": "3f2c8a4e-1b6d-4c2a-9e7f-5a1b2c3d4e5f",
  "createdAt": "2025-01-01T00:00:00.000Z",
  "updatedAt": "2025-01-01T00:00:00.000Z",
  "meta": {"projectName": "Clinic Flow"},
  "steps": {"1-1": {"user": "Nurse", "oneLine": "Referrals stall"}}
}`

// setup writes a config that stores dossiers under a temp directory.
func setup(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	cfg := "storage:\n  backend: fs\n  namespace: rhs\n  path: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, dir
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"dossier"}, args...))
	return buf.String(), err
}

func TestImportListExportSummary(t *testing.T) {
	cfg, dir := setup(t)
	src := filepath.Join(dir, "in.json")
	if err := os.WriteFile(src, []byte(sampleDossier), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "-c", cfg, "import", src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if strings.TrimSpace(out) != sampleID {
		t.Errorf("import output = %q", out)
	}

	out, err = runApp(t, "-c", cfg, "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []struct {
		ID         string `json:"id"`
		ResumeHref string `json:"resumeHref"`
	}
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list: %v (%s)", err, out)
	}
	if len(items) != 1 || items[0].ID != sampleID {
		t.Errorf("items = %+v", items)
	}

	out, err = runApp(t, "-c", cfg, "list")
	if err != nil || !strings.Contains(out, "Clinic Flow") || !strings.Contains(out, "*") {
		t.Errorf("table = %q, err = %v", out, err)
	}

	exportDir := filepath.Join(dir, "out") + "/"
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		t.Fatal(err)
	}
	out, err = runApp(t, "-c", cfg, "export", "-o", exportDir, sampleID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := exportDir + "clinic-flow-" + sampleID + ".json"
	if strings.TrimSpace(out) != want {
		t.Errorf("export output = %q, want %q", out, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("export file: %v", err)
	}

	// The active dossier is used when no id is given.
	out, err = runApp(t, "-c", cfg, "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "Project: Clinic Flow") || !strings.Contains(out, "Dossier ID: "+sampleID) {
		t.Errorf("summary = %q", out)
	}
}

func TestImportRejectsInvalid(t *testing.T) {
	cfg, dir := setup(t)
	src := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(src, []byte(`{"id":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runApp(t, "-c", cfg, "import", src)
	if err == nil || !strings.Contains(err.Error(), "import failed") {
		t.Errorf("err = %v", err)
	}
}

func TestSummaryWithoutDossiers(t *testing.T) {
	cfg, _ := setup(t)
	if _, err := runApp(t, "-c", cfg, "summary"); err == nil {
		t.Error("expected error without an active dossier")
	}
}
