package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tannerhart/imagerbackend/models"
)

// FavoriteRepository handles database operations for FavoriteImage entities
type FavoriteRepository struct {
	DB *gorm.DB
}

// NewFavoriteRepository creates a new instance of FavoriteRepository
func NewFavoriteRepository(db *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{DB: db}
}

// Add favorites an image. Favoriting an image that already has a favorite
// updates the existing row instead of inserting a second one. Returns
// ErrNotFound when the referenced image does not exist.
func (r *FavoriteRepository) Add(imageID uint, customLabel, note *string, displayOrder int) (*models.FavoriteImage, error) {
	var image models.Image
	if err := r.DB.First(&image, imageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify image %d for favorite: %w", imageID, err)
	}

	var existing models.FavoriteImage
	err := r.DB.Where("image_id = ?", imageID).First(&existing).Error
	if err == nil {
		order := displayOrder
		return r.Update(existing.ID, customLabel, note, &order)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing favorite for image %d: %w", imageID, err)
	}

	favorite := models.FavoriteImage{
		ImageID:      imageID,
		CustomLabel:  customLabel,
		Note:         note,
		DisplayOrder: displayOrder,
		AddedAt:      time.Now().Unix(),
	}
	if err := r.DB.Create(&favorite).Error; err != nil {
		return nil, fmt.Errorf("failed to add favorite for image %d: %w", imageID, err)
	}
	return &favorite, nil
}

// GetByID retrieves a favorite by its ID, with its image preloaded
func (r *FavoriteRepository) GetByID(id uint) (*models.FavoriteImage, error) {
	var favorite models.FavoriteImage
	err := r.DB.Preload("Image").First(&favorite, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get favorite by ID %d: %w", id, err)
	}
	return &favorite, nil
}

// ListAll retrieves all favorites ordered by display order ascending
func (r *FavoriteRepository) ListAll() ([]models.FavoriteImage, error) {
	var favorites []models.FavoriteImage
	err := r.DB.Preload("Image").Order("display_order ASC").Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favorites, nil
}

// Update changes a favorite's label, note, and/or display order. Nil
// arguments keep the stored values.
func (r *FavoriteRepository) Update(id uint, customLabel, note *string, displayOrder *int) (*models.FavoriteImage, error) {
	updates := map[string]interface{}{}
	if customLabel != nil {
		updates["custom_label"] = *customLabel
	}
	if note != nil {
		updates["note"] = *note
	}
	if displayOrder != nil {
		updates["display_order"] = *displayOrder
	}

	if len(updates) > 0 {
		result := r.DB.Model(&models.FavoriteImage{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update favorite %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(id)
}

// Remove deletes a favorite by its ID. The image itself is untouched.
func (r *FavoriteRepository) Remove(id uint) error {
	result := r.DB.Delete(&models.FavoriteImage{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
