package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Extractor unpacks downloaded archives.
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the final extension of name: ".gz" is a gzipped tar
// with its first path component stripped, ".zip" keeps its structure. Files
// already present in destDir are overwritten.
func (e *Extractor) Extract(archivePath, name, destDir string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return e.ExtractTarGz(archivePath, destDir, 1)
	case ".zip":
		return e.ExtractZip(archivePath, destDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ExtractTarGz extracts a .tar.gz archive to destDir, dropping the first
// strip components of every entry. Entries with nothing left are skipped.
func (e *Extractor) ExtractTarGz(archivePath, destDir string, strip int) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %s", ErrIllegalPath, header.Name)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name, ok := stripComponents(header.Name, strip)
		if !ok {
			continue
		}
		target, err := safeJoin(destDir, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header.FileInfo().Mode())); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := writeFile(target, tarReader, header.FileInfo().Mode()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := createSymlink(destDir, target, header.Linkname); err != nil {
				return err
			}

		case tar.TypeLink:
			linkName, ok := stripComponents(header.Linkname, strip)
			if !ok {
				return fmt.Errorf("%w: hard link %s -> %s", ErrIllegalPath, header.Name, header.Linkname)
			}
			source, err := safeJoin(destDir, linkName)
			if err != nil {
				return err
			}
			if isSymlink(source) {
				return fmt.Errorf("%w: hard link %s -> symlink %s", ErrIllegalPath, header.Name, header.Linkname)
			}
			if err := copyFile(source, target); err != nil {
				return err
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			continue
		}
	}

	return nil
}

// ExtractZip extracts a .zip archive to destDir preserving its structure.
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		reader.Close()
		return fmt.Errorf("%w: %v", ErrIllegalPath, err)
	}
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, f := range reader.File {
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if path.Clean(name) == "." {
			continue
		}
		target, err := safeJoin(destDir, name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, dirMode(mode)); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case mode&fs.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := createSymlink(destDir, target, linkname); err != nil {
				return err
			}

		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open zip entry %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, mode)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// stripComponents drops the first n components of a slash-separated name.
// Empty and "." components are not counted; ".." is kept so safeJoin can
// reject it.
func stripComponents(name string, n int) (string, bool) {
	var kept []string
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) <= n {
		return "", false
	}
	return strings.Join(kept[n:], "/"), true
}

// safeJoin joins name onto destDir and rejects results outside destDir,
// including names whose parent directories are symlinks already on disk.
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	rel, err := filepath.Rel(destDir, filepath.Dir(target))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	if link, ok := firstSymlink(filepath.Clean(destDir), rel); ok {
		return "", fmt.Errorf("%w: %s passes through symlink %s", ErrIllegalPath, name, link)
	}
	return target, nil
}

// firstSymlink walks rel component by component below base and reports the
// first existing symlink. Components are joined lexically, which matches the
// filesystem only while no earlier component is a symlink.
func firstSymlink(base, rel string) (string, bool) {
	cur := base
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			return "", false
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return cur, true
		}
	}
	return "", false
}

func isSymlink(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// createSymlink creates target -> linkname after checking the link stays
// inside destDir. Intermediate components of linkname may not be symlinks,
// so the lexical check holds on disk too.
func createSymlink(destDir, target, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if !strings.HasPrefix(resolved, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, target, linkname)
	}
	linkDir := ""
	if idx := strings.LastIndex(filepath.ToSlash(linkname), "/"); idx >= 0 {
		linkDir = filepath.ToSlash(linkname)[:idx]
	}
	if link, ok := firstSymlink(filepath.Dir(target), linkDir); ok {
		return fmt.Errorf("%w: symlink %s -> %s passes through symlink %s", ErrIllegalPath, target, linkname, link)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if err := removeExisting(target); err != nil {
		return err
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

// writeFile replaces target with the contents of r.
func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	// Never write through a symlink left by a previous install.
	if err := removeExisting(target); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return outFile.Close()
}

// copyFile materialises a tar hard link as a copy of an extracted file.
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open hard link source %s: %w", source, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat hard link source %s: %w", source, err)
	}
	return writeFile(target, in, info.Mode())
}

// removeExisting deletes a non-directory at target if present.
func removeExisting(target string) error {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s exists and is a directory", target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("read zip entry %s: %w", f.Name, err)
	}
	return string(b), nil
}

// dirMode keeps directories traversable and writable by the owner.
func dirMode(mode fs.FileMode) fs.FileMode {
	return mode.Perm() | 0700
}
