package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := makeZip(t, map[string]string{
		"index.html":   "<html></html>",
		"package.json": "{}",
	})

	files, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files["index.html"].Content != "<html></html>" {
		t.Errorf("Unexpected content: %q", files["index.html"].Content)
	}
	if files["package.json"].IsBinary {
		t.Error("Text entry flagged binary")
	}
}

func TestExtractSkipsDirectoryEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("src/"); err != nil {
		t.Fatalf("zip create dir: %v", err)
	}
	w, _ := zw.Create("src/app.js")
	w.Write([]byte("let x = 1"))
	zw.Close()

	files, err := Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	if _, ok := files["src/app.js"]; !ok {
		t.Error("Expected nested entry src/app.js")
	}
}

func TestExtractFlagsBinaryEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("logo.png")
	w.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0xFF, 0xFE})
	zw.Close()

	files, err := Extract(buf.Bytes())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !files["logo.png"].IsBinary {
		t.Error("Expected non-UTF-8 entry to be flagged binary")
	}
}

func TestExtractCorrupt(t *testing.T) {
	_, err := Extract([]byte("definitely not a zip"))
	if !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("Expected ErrCorruptArchive, got %v", err)
	}
}

func TestExtractToDiskRoundTrip(t *testing.T) {
	data := makeZip(t, map[string]string{
		"index.html":   "<html></html>",
		"package.json": "{}",
	})
	target := t.TempDir()

	dir, err := ExtractToDisk(data, target)
	if err != nil {
		t.Fatalf("ExtractToDisk failed: %v", err)
	}
	if dir != target {
		t.Errorf("Expected returned dir %s, got %s", target, dir)
	}

	// Exactly the two files, byte-identical, no extras
	want := map[string]string{
		"index.html":   "<html></html>",
		"package.json": "{}",
	}
	for name, content := range want {
		got, err := os.ReadFile(filepath.Join(target, name))
		if err != nil {
			t.Fatalf("ReadFile %s: %v", name, err)
		}
		if string(got) != content {
			t.Errorf("Content mismatch for %s: %q", name, got)
		}
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected exactly 2 entries, got %d", len(entries))
	}
}

func TestExtractToDiskNestedPaths(t *testing.T) {
	data := makeZip(t, map[string]string{
		"src/components/App.jsx": "export default null",
		"public/favicon.svg":     "<svg/>",
	})
	target := t.TempDir()

	if _, err := ExtractToDisk(data, target); err != nil {
		t.Fatalf("ExtractToDisk failed: %v", err)
	}
	for _, rel := range []string{
		filepath.Join("src", "components", "App.jsx"),
		filepath.Join("public", "favicon.svg"),
	} {
		if _, err := os.Stat(filepath.Join(target, rel)); err != nil {
			t.Errorf("Expected %s: %v", rel, err)
		}
	}
}

func TestExtractToDiskIdempotent(t *testing.T) {
	data := makeZip(t, map[string]string{"a/b.txt": "one"})
	target := t.TempDir()

	if _, err := ExtractToDisk(data, target); err != nil {
		t.Fatalf("First extraction failed: %v", err)
	}
	if _, err := ExtractToDisk(data, target); err != nil {
		t.Fatalf("Second extraction failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(target, "a", "b.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("Unexpected content after rerun: %q", got)
	}
}

func TestExtractToDiskOverwrites(t *testing.T) {
	target := t.TempDir()
	if _, err := ExtractToDisk(makeZip(t, map[string]string{"x.txt": "old"}), target); err != nil {
		t.Fatalf("First extraction failed: %v", err)
	}
	if _, err := ExtractToDisk(makeZip(t, map[string]string{"x.txt": "new"}), target); err != nil {
		t.Fatalf("Second extraction failed: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(target, "x.txt"))
	if string(got) != "new" {
		t.Errorf("Expected last extraction to win, got %q", got)
	}
}

func TestExtractToDiskRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("../evil.txt")
	w.Write([]byte("nope"))
	zw.Close()

	target := t.TempDir()
	_, err := ExtractToDisk(buf.Bytes(), target)
	if !errors.Is(err, ErrCorruptArchive) {
		t.Fatalf("Expected ErrCorruptArchive for escaping entry, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(target), "evil.txt")); !os.IsNotExist(statErr) {
		t.Error("Escaping entry must not be written")
	}
}

func TestExtractToDiskCorrupt(t *testing.T) {
	_, err := ExtractToDisk([]byte("garbage"), t.TempDir())
	if !errors.Is(err, ErrCorruptArchive) {
		t.Errorf("Expected ErrCorruptArchive, got %v", err)
	}
}

func TestMissingConventions(t *testing.T) {
	missing := MissingConventions([]string{"demo/index.html", "demo/package.json"})
	if len(missing) != 1 || missing[0] != "vite.config.ts" {
		t.Errorf("Expected only vite.config.ts missing, got %v", missing)
	}

	missing = MissingConventions([]string{"index.html", "package.json", "vite.config.ts"})
	if len(missing) != 0 {
		t.Errorf("Expected nothing missing, got %v", missing)
	}
}

func TestEntryNames(t *testing.T) {
	data := makeZip(t, map[string]string{"a.txt": "1", "b/c.txt": "2"})
	names, err := EntryNames(data)
	if err != nil {
		t.Fatalf("EntryNames failed: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("Expected 2 names, got %v", names)
	}
}
