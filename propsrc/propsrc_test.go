package propsrc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestFileSourceFlattensNestedTables(t *testing.T) {
	path := writeTemp(t, `
[extract]
follow_file = "/etc/crawler/follow.txt"
id_value_prefix = "x_"
validation_only = false

[transform]
pipe_line = ["content_clean", "pc_collapse"]
pc_collapse_file = "/etc/crawler/pc_collapse.toml"

[publish]
upload_enabled = true
request_uri = "http://index.internal/docs"
`)

	flat, err := FileSource{Path: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	b := New()
	if err := b.Apply(FileSource{Path: path}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if b.String("extract.follow_file") != "/etc/crawler/follow.txt" {
		t.Fatalf("extract.follow_file = %q", b.String("extract.follow_file"))
	}
	if b.String("transform.pc_collapse_file") != "/etc/crawler/pc_collapse.toml" {
		t.Fatalf("transform.pc_collapse_file = %q", b.String("transform.pc_collapse_file"))
	}
	if !b.Bool("publish.upload_enabled") {
		t.Fatal("expected publish.upload_enabled true")
	}
	pipeline := b.Strings("transform.pipe_line")
	if len(pipeline) != 2 || pipeline[0] != "content_clean" || pipeline[1] != "pc_collapse" {
		t.Fatalf("transform.pipe_line = %v", pipeline)
	}
	if _, ok := flat["extract.validation_only"]; !ok {
		t.Fatal("expected extract.validation_only present in flattened map")
	}
}

func TestFileSourceMissingFileReturnsNoLayer(t *testing.T) {
	flat, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.toml")}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if flat != nil {
		t.Fatalf("expected nil layer for missing file, got %v", flat)
	}
}

func TestEnvOverlayOverridesFileLayer(t *testing.T) {
	path := writeTemp(t, `
[publish]
upload_enabled = false
request_uri = "http://index.internal/docs"
`)

	t.Setenv("NSD_PUBLISH__UPLOAD_ENABLED", "true")
	t.Setenv("NSD_PUBLISH__REQUEST_URI", "http://override.example/docs")
	t.Setenv("UNRELATED_VAR", "ignored")

	b := New()
	if err := b.Apply(FileSource{Path: path}); err != nil {
		t.Fatalf("apply file: %v", err)
	}
	if err := b.Apply(EnvOverlay{Prefix: "NSD"}); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if !b.Bool("publish.upload_enabled") {
		t.Fatal("expected env override to win")
	}
	if b.String("publish.request_uri") != "http://override.example/docs" {
		t.Fatalf("publish.request_uri = %q", b.String("publish.request_uri"))
	}
	if b.Exists("unrelated_var") {
		t.Fatal("expected unrelated env var to be excluded")
	}
}

func TestStringOrFallsBackToDefault(t *testing.T) {
	b := New()
	if got := b.StringOr("extract.id_value_prefix", "default_"); got != "default_" {
		t.Fatalf("got %q", got)
	}
}
