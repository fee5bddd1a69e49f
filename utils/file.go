package utils

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
}

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// IsValidImage reports whether the file is a supported, openable image.
// The extension must be in the supported set and the pixel dimensions must be
// readable, so a renamed text file with a .jpg extension is rejected just like
// a genuine image hiding behind a .txt extension.
func IsValidImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedImageExtensions[ext] {
		return false
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	_, _, err = image.DecodeConfig(file)
	return err == nil
}

// ImageMimeType returns the MIME type for a supported image path, defaulting
// to image/jpeg for anything unrecognized.
func ImageMimeType(path string) string {
	if mt, ok := imageMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// ListImages enumerates the valid image files in a directory, optionally
// descending into subdirectories. Hidden files and hidden directories (name
// beginning with a dot) are skipped. Order is enumeration order and callers
// must not depend on it being stable across platforms.
func ListImages(folder string, recursive bool) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to stat folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var found []string

	if !recursive {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("failed to read folder %s: %w", folder, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			path := filepath.Join(folder, entry.Name())
			if IsValidImage(path) {
				found = append(found, path)
			}
		}
		return found, nil
	}

	err = godirwalk.Walk(folder, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != folder && strings.HasPrefix(filepath.Base(path), ".") {
				return godirwalk.SkipThis
			}
			if !de.IsDir() && IsValidImage(path) {
				found = append(found, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk folder %s: %w", folder, err)
	}
	return found, nil
}

// GenerateThumbnail creates a thumbnail with a UUID filename, fitting the
// image into maxSize on its longest side. Returns the full save path.
func GenerateThumbnail(originalImagePath, thumbnailDir string, maxSize int) (string, error) {
	if err := os.MkdirAll(thumbnailDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory %s: %w", thumbnailDir, err)
	}

	img, err := imaging.Open(originalImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", originalImagePath, err)
	}

	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}
	thumbFilename := thumbUUID.String() + ".jpg"
	thumbnailSavePath := filepath.Join(thumbnailDir, thumbFilename)

	err = imaging.Save(thumb, thumbnailSavePath, imaging.JPEGQuality(80))
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail to %s: %w", thumbnailSavePath, err)
	}

	log.Printf("generated thumbnail (UUID: %s) for %s at %s", thumbUUID.String(), originalImagePath, thumbnailSavePath)
	return thumbnailSavePath, nil
}
