package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/tannerhart/imagerbackend/models"
)

// FolderRepository handles database operations for Folder entities
type FolderRepository struct {
	DB *gorm.DB
}

// NewFolderRepository creates a new instance of FolderRepository
func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{DB: db}
}

// GetOrCreate returns the folder for the given path, inserting it first if no
// row exists. Path is the unique key; a concurrent insert of the same path is
// resolved by re-running the lookup instead of surfacing the constraint error.
func (r *FolderRepository) GetOrCreate(name, path string) (*models.Folder, error) {
	cleanPath := filepath.ToSlash(path)
	folder := models.Folder{
		Name:        name,
		Path:        cleanPath,
		ProcessedAt: time.Now().Unix(),
	}

	result := r.DB.Where(models.Folder{Path: cleanPath}).FirstOrCreate(&folder)
	if result.Error != nil {
		// FirstOrCreate can lose a duplicate-path race; the row exists now
		var existing models.Folder
		if lookupErr := r.DB.Where("path = ?", cleanPath).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to get or create folder %s: %w", cleanPath, result.Error)
	}
	return &folder, nil
}

// GetByID retrieves a folder by its ID
func (r *FolderRepository) GetByID(id uint) (*models.Folder, error) {
	var folder models.Folder
	err := r.DB.First(&folder, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder by ID %d: %w", id, err)
	}
	return &folder, nil
}

// GetByPath retrieves a folder by its unique path
func (r *FolderRepository) GetByPath(path string) (*models.Folder, error) {
	var folder models.Folder
	err := r.DB.Where("path = ?", filepath.ToSlash(path)).First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder by path %s: %w", path, err)
	}
	return &folder, nil
}

// ListAll retrieves all folders, most recently processed first
func (r *FolderRepository) ListAll() ([]models.Folder, error) {
	var folders []models.Folder
	err := r.DB.Order("processed_at DESC").Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// Delete removes a folder together with its images and their favorites.
// The cascade runs inside one transaction so a partial delete never commits.
func (r *FolderRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var folder models.Folder
		if err := tx.First(&folder, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load folder %d for delete: %w", id, err)
		}

		var imageIDs []uint
		if err := tx.Model(&models.Image{}).Where("folder_id = ?", id).Pluck("id", &imageIDs).Error; err != nil {
			return fmt.Errorf("failed to list images of folder %d: %w", id, err)
		}

		if len(imageIDs) > 0 {
			if err := tx.Where("image_id IN ?", imageIDs).Delete(&models.FavoriteImage{}).Error; err != nil {
				return fmt.Errorf("failed to delete favorites of folder %d: %w", id, err)
			}
			if err := tx.Where("folder_id = ?", id).Delete(&models.Image{}).Error; err != nil {
				return fmt.Errorf("failed to delete images of folder %d: %w", id, err)
			}
		}

		if err := tx.Delete(&models.Folder{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete folder %d: %w", id, err)
		}
		return nil
	})
}
