package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// archiveDirectory zips every regular file directly inside dir into
// dir/archiveName and removes the originals, leaving the archive as the
// only entry.
func archiveDirectory(dir, archiveName string) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(dir, archiveName)
	zipFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", archivePath, err)
	}

	writer := zip.NewWriter(zipFile)
	for _, name := range files {
		if err := addFileToArchive(writer, dir, name); err != nil {
			writer.Close()
			zipFile.Close()
			os.Remove(archivePath)
			return err
		}
	}
	if err := writer.Close(); err != nil {
		zipFile.Close()
		os.Remove(archivePath)
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	// Remove the loose files; the archive is now the served unit.
	for _, name := range files {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove archived file %s: %w", name, err)
		}
	}
	return nil
}

func addFileToArchive(writer *zip.Writer, dir, name string) error {
	src, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	dst, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}
