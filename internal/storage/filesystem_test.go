package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "models/a.glb", want: "models/a.glb"},
		{key: "/models//a.glb", want: "models/a.glb"},
		{key: "./models/a.glb", want: "models/a.glb"},
		{key: `models\a.glb`, want: "models/a.glb"},
		{key: "../etc/passwd", wantErr: true},
		{key: "..", wantErr: true},
		{key: "models/../..", wantErr: true},
		{key: "models/../../x", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) = %q, want error", tc.key, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
			}
		})
	}
}

func TestSaveModel(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	path, err := store.SaveModel(context.Background(), []byte("glTF"), "https://cdn.test/out/model.GLB?sig=1", "application/octet-stream")
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if !strings.HasSuffix(path, ".glb") || !strings.HasPrefix(path, dir) {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "glTF" {
		t.Fatalf("read back %q: %v", data, err)
	}
	if filepath.Base(filepath.Dir(filepath.Dir(path))) != "models" {
		t.Fatalf("model should live under models/<date>/, got %q", path)
	}
}

func TestModelExtension(t *testing.T) {
	tests := map[string][3]string{
		"url extension":      {"https://cdn.test/a.obj", "", "obj"},
		"content type":       {"https://cdn.test/a", "model/gltf+json", "gltf"},
		"unknown defaults":   {"https://cdn.test/a.bin", "application/octet-stream", "glb"},
		"query is stripped":  {"https://cdn.test/a.stl?x=1.glb", "", "stl"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := modelExtension(tc[0], tc[1]); got != tc[2] {
				t.Fatalf("modelExtension(%q, %q) = %q, want %q", tc[0], tc[1], got, tc[2])
			}
		})
	}
}

func TestWriteHonoursCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "models/a.glb", []byte("x")); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if _, err := NewFileStore(" "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}
