package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/tannerhart/imagerbackend/models"
	"github.com/tannerhart/imagerbackend/utils"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// UpsertResult stores one analysis outcome keyed by the image's unique file
// path. An existing row is overwritten in place (analysis fields, status,
// processed_at, metadata); otherwise a new row is inserted. A duplicate-path
// insert race falls back to lookup-then-update so the unique constraint never
// surfaces to the caller.
func (r *ImageRepository) UpsertResult(res ImageResult) (*models.Image, error) {
	cleanPath := filepath.ToSlash(res.FilePath)

	var existing models.Image
	err := r.DB.Where("file_path = ?", cleanPath).First(&existing).Error
	switch {
	case err == nil:
		return r.overwrite(&existing, res)
	case errors.Is(err, gorm.ErrRecordNotFound):
		image := models.Image{
			FolderID:      res.FolderID,
			FileName:      res.FileName,
			FilePath:      cleanPath,
			ObjectName:    res.ObjectName,
			Description:   res.Description,
			Confidence:    res.Confidence,
			Status:        res.Status,
			ProcessedAt:   time.Now().Unix(),
			ThumbnailPath: res.ThumbnailPath,
		}
		applyMetadata(&image, res.Metadata)
		if createErr := r.DB.Create(&image).Error; createErr != nil {
			// lost an insert race for this path; the row exists now
			if lookupErr := r.DB.Where("file_path = ?", cleanPath).First(&existing).Error; lookupErr == nil {
				return r.overwrite(&existing, res)
			}
			return nil, fmt.Errorf("failed to insert image result for %s: %w", cleanPath, createErr)
		}
		return &image, nil
	default:
		return nil, fmt.Errorf("failed to look up image by path %s: %w", cleanPath, err)
	}
}

func (r *ImageRepository) overwrite(image *models.Image, res ImageResult) (*models.Image, error) {
	updates := map[string]interface{}{
		"object_name":  res.ObjectName,
		"description":  res.Description,
		"confidence":   res.Confidence,
		"status":       res.Status,
		"processed_at": time.Now().Unix(),
	}
	if res.Metadata != nil {
		meta := res.Metadata
		updates["width"] = meta.Width
		updates["height"] = meta.Height
		updates["camera_make"] = meta.CameraMake
		updates["camera_model"] = meta.CameraModel
		updates["date_taken"] = unixPtr(meta.DateTaken)
		updates["focal_length"] = meta.FocalLength
		updates["exposure_time"] = meta.ExposureTime
		updates["aperture"] = meta.Aperture
		updates["iso_speed"] = meta.ISOSpeed
		updates["gps_latitude"] = meta.GPSLatitude
		updates["gps_longitude"] = meta.GPSLongitude
		updates["file_size"] = meta.FileSize
		updates["file_type"] = meta.FileType
		updates["metadata_json"] = meta.JSON()
	}
	if res.ThumbnailPath != nil {
		updates["thumbnail_path"] = res.ThumbnailPath
	}

	if err := r.DB.Model(&models.Image{}).Where("id = ?", image.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update image result for %s: %w", image.FilePath, err)
	}

	var updated models.Image
	if err := r.DB.First(&updated, image.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload image %d after update: %w", image.ID, err)
	}
	return &updated, nil
}

func applyMetadata(image *models.Image, meta *utils.Metadata) {
	if meta == nil {
		return
	}
	image.Width = meta.Width
	image.Height = meta.Height
	image.CameraMake = meta.CameraMake
	image.CameraModel = meta.CameraModel
	image.DateTaken = unixPtr(meta.DateTaken)
	image.FocalLength = meta.FocalLength
	image.ExposureTime = meta.ExposureTime
	image.Aperture = meta.Aperture
	image.ISOSpeed = meta.ISOSpeed
	image.GPSLatitude = meta.GPSLatitude
	image.GPSLongitude = meta.GPSLongitude
	image.FileSize = meta.FileSize
	image.FileType = meta.FileType
	image.MetadataJSON = meta.JSON()
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ts := t.Unix()
	return &ts
}

// GetByID retrieves an image by its ID
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// GetByPath retrieves an image by its unique file path
func (r *ImageRepository) GetByPath(filePath string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Where("file_path = ?", filepath.ToSlash(filePath)).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", filePath, err)
	}
	return &image, nil
}

// ListByFolder retrieves all images of a folder, naturally sorted by file name
func (r *ImageRepository) ListByFolder(folderID uint) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.Where("folder_id = ?", folderID).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for folder %d: %w", folderID, err)
	}
	sort.SliceStable(images, func(i, j int) bool {
		return natsort.Compare(images[i].FileName, images[j].FileName)
	})
	return images, nil
}

// Search finds images whose object name, description, camera make/model, file
// type, or raw metadata blob contains the query, case-insensitively. Each
// matching image appears once regardless of how many fields matched.
func (r *ImageRepository) Search(query string) ([]models.Image, error) {
	like := "%" + strings.ToLower(query) + "%"
	var images []models.Image
	err := r.DB.Where(
		"LOWER(object_name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(camera_make) LIKE ? OR LOWER(camera_model) LIKE ? OR LOWER(file_type) LIKE ? OR LOWER(metadata_json) LIKE ?",
		like, like, like, like, like, like,
	).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search images for %q: %w", query, err)
	}
	return images, nil
}

// Delete removes an image and its favorite, if any, in one transaction
func (r *ImageRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&models.FavoriteImage{}).Error; err != nil {
			return fmt.Errorf("failed to delete favorites of image %d: %w", id, err)
		}
		result := tx.Delete(&models.Image{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete image %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
