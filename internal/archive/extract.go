package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"projecthub/internal/models"
)

// ErrCorruptArchive indicates the payload is not a valid zip container.
var ErrCorruptArchive = errors.New("corrupt archive")

// DiskWriteError reports a filesystem failure while materializing an entry.
// Files written before the failure are left in place.
type DiskWriteError struct {
	Path string
	Err  error
}

func (e *DiskWriteError) Error() string {
	return fmt.Sprintf("disk write %s: %v", e.Path, e.Err)
}

func (e *DiskWriteError) Unwrap() error { return e.Err }

// ConventionalFiles is the minimum a runnable project is expected to ship.
// Absence is warned about, never enforced.
var ConventionalFiles = []string{"index.html", "package.json", "vite.config.ts"}

// Extract unpacks an archive into the in-memory file map used for preview.
// One VirtualFile per non-directory entry; content is decoded as text and
// entries that are not valid UTF-8 are flagged binary.
func Extract(data []byte) (map[string]models.VirtualFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	files := make(map[string]models.VirtualFile)
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, entry.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, entry.Name, err)
		}
		files[entry.Name] = models.VirtualFile{
			Path:     entry.Name,
			Content:  string(content),
			IsBinary: !utf8.Valid(content),
		}
	}
	return files, nil
}

// ExtractToDisk materializes every non-directory entry under targetDir,
// preserving the archive's relative path structure. Entries are streamed one
// at a time so peak memory stays bounded by the compressed archive. Parent
// directories are created as needed and existing files are overwritten, so
// re-running with the same archive is idempotent. On failure, files written
// earlier in the same extraction remain on disk.
func ExtractToDisk(data []byte, targetDir string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := writeEntry(entry, targetDir); err != nil {
			return "", err
		}
	}
	return targetDir, nil
}

func writeEntry(entry *zip.File, targetDir string) error {
	dest, err := securePath(targetDir, entry.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &DiskWriteError{Path: dest, Err: err}
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, entry.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return &DiskWriteError{Path: dest, Err: err}
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return &DiskWriteError{Path: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return &DiskWriteError{Path: dest, Err: err}
	}
	return nil
}

// securePath rejects entries that would escape the target directory.
func securePath(targetDir, name string) (string, error) {
	dest := filepath.Join(targetDir, filepath.FromSlash(name))
	if dest != filepath.Clean(targetDir) &&
		!strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry escapes target directory: %s", ErrCorruptArchive, name)
	}
	return dest, nil
}

// EntryNames lists the non-directory entry paths of an archive without
// extracting it.
func EntryNames(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	var names []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}

// MissingConventions reports which conventional project files are absent
// from the given entry paths. A file counts as present when any entry ends
// with its name, so archives with a top-level directory still pass.
func MissingConventions(paths []string) []string {
	var missing []string
	for _, want := range ConventionalFiles {
		found := false
		for _, path := range paths {
			if path == want || strings.HasSuffix(path, "/"+want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return missing
}
