package romloader

import (
	"archive/zip"
	"fmt"
	"path/filepath"
)

// extractFromZIP extracts the first .gb file from a ZIP archive
func extractFromZIP(path string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, file := range r.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if !isGBFile(file.Name) {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
		return data, filepath.Base(file.Name), nil
	}

	return nil, "", ErrNoGBFile
}
