package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recera/mdxlite/pkg/mdx"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ContentDir != "content" {
		t.Errorf("ContentDir = %q, want content", cfg.ContentDir)
	}
	if cfg.Build.Output != "dist" || cfg.Build.Workers != 4 {
		t.Errorf("unexpected build defaults: %+v", cfg.Build)
	}
	if cfg.Dev.Port != 5173 || cfg.Dev.Host != "localhost" {
		t.Errorf("unexpected dev defaults: %+v", cfg.Dev)
	}
	if d, _ := cfg.Script.BudgetDuration(); d != 5*time.Second {
		t.Errorf("budget = %s, want 5s", d)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mdxlite.yaml", `
contentDir: docs
elements:
  disallowed: [img]
  unwrap: true
script:
  budget: 250ms
  modules:
    ./site:
      title: My Site
  globals:
    year: 2024
render:
  fragment: article
  rename:
    h1: h2
dev:
  port: 8080
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ContentDir != "docs" {
		t.Errorf("ContentDir = %q", cfg.ContentDir)
	}
	if len(cfg.Elements.Disallowed) != 1 || !cfg.Elements.Unwrap {
		t.Errorf("unexpected elements: %+v", cfg.Elements)
	}
	if d, _ := cfg.Script.BudgetDuration(); d != 250*time.Millisecond {
		t.Errorf("budget = %s", d)
	}
	if cfg.Script.Modules["./site"]["title"] != "My Site" {
		t.Errorf("unexpected modules: %v", cfg.Script.Modules)
	}
	if cfg.Dev.Port != 8080 || cfg.Dev.Host != "localhost" {
		t.Errorf("unexpected dev config: %+v", cfg.Dev)
	}
	// Sections missing from the file fall back to defaults.
	if cfg.Build == nil || cfg.Build.Output != "dist" {
		t.Errorf("unexpected build config: %+v", cfg.Build)
	}
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mdxlite.json", `{"elements": {"allowed": []}, "markdown": {"strict": true}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Elements.Allowed == nil || len(cfg.Elements.Allowed) != 0 {
		t.Errorf("an empty allowed list should stay set, got %#v", cfg.Elements.Allowed)
	}
	if !cfg.Markdown.Strict {
		t.Error("markdown.strict not loaded")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "both element lists",
			content: "elements:\n  allowed: [p]\n  disallowed: [em]\n",
			want:    "elements:",
		},
		{
			name:    "bad budget",
			content: "script:\n  budget: soon\n",
			want:    "invalid budget",
		},
		{
			name:    "negative budget",
			content: "script:\n  budget: -1s\n",
			want:    "must not be negative",
		},
		{
			name:    "bad fragment tag",
			content: "render:\n  fragment: \"<div>\"\n",
			want:    "invalid fragment tag",
		},
		{
			name:    "bad rename target",
			content: "render:\n  rename:\n    h1: \"h 2\"\n",
			want:    "invalid tag",
		},
		{
			name:    "port out of range",
			content: "dev:\n  port: 70000\n",
			want:    "out of range",
		},
		{
			name:    "malformed yaml",
			content: "elements: [\n",
			want:    "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "mdxlite.yaml", tt.content)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestCompileOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script.Modules = map[string]map[string]any{"./site": {"title": "Docs"}}
	cfg.Script.Globals = map[string]any{"year": 2024}
	cfg.Elements.Disallowed = []string{"em"}

	src := "import {title} from './site'\n\n# {title} ~~{year}~~ *x*\n"

	var buf bytes.Buffer
	if err := mdx.Render(context.Background(), src, cfg.CompileOptions(nil), cfg.RenderOptions(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got, want := buf.String(), "<h1>Docs <del>2024</del> </h1>"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	cfg.Markdown.Strict = true
	buf.Reset()
	if err := mdx.Render(context.Background(), "~~a~~", cfg.CompileOptions(nil), cfg.RenderOptions(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := buf.String(); got != "<p>~~a~~</p>" {
		t.Errorf("strict markdown should not parse strikethrough, got %q", got)
	}
}

func TestRenderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Fragment = "article"
	cfg.Render.UGC = true
	cfg.Render.Rename = map[string]string{"h1": "h2"}

	var buf bytes.Buffer
	err := mdx.Render(context.Background(), "# T\n\n<b onclick=\"x()\">b</b>\n", mdx.Options{}, cfg.RenderOptions(), &buf)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got, want := buf.String(), "<article><h2>T</h2><p>&lt;b onclick=&#34;x()&#34;&gt;b&lt;/b&gt;</p></article>"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()

	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := b.Fingerprint()
	if fa != fb {
		t.Error("equal configurations should share a fingerprint")
	}

	b.Dev.Port = 9000
	b.Build.Workers = 1
	if fb, _ = b.Fingerprint(); fa != fb {
		t.Error("build and dev settings do not change output")
	}

	b.Elements.Allowed = []string{}
	if fb, _ = b.Fingerprint(); fa == fb {
		t.Error("an empty allowed list should change the fingerprint")
	}

	c := DefaultConfig()
	c.Render.UGC = true
	if fc, _ := c.Fingerprint(); fa == fc {
		t.Error("render settings should change the fingerprint")
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ContentDir = "pages"
	cfg.Elements.Disallowed = []string{"script"}
	cfg.Render.Fragment = "article"

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ContentDir != "pages" || loaded.Render.Fragment != "article" {
		t.Errorf("unexpected loaded config: %+v", loaded)
	}
	if len(loaded.Elements.Disallowed) != 1 || loaded.Elements.Disallowed[0] != "script" {
		t.Errorf("unexpected elements: %+v", loaded.Elements)
	}
}
