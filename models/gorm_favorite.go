package models

// FavoriteImage represents an image pinned to the dashboard using GORM.
// It corresponds to the 'favorite_images' table. An image holds at most one
// favorite in practice; favoriting an already-favorited image updates the
// existing row.
type FavoriteImage struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageID      uint    `gorm:"not null;index" json:"image_id"`
	DisplayOrder int     `gorm:"not null;default:0" json:"display_order"`
	Note         *string `gorm:"type:text" json:"note,omitempty"`    // Nullable
	CustomLabel  *string `gorm:"" json:"custom_label,omitempty"`     // Nullable
	AddedAt      int64   `gorm:"not null" json:"added_at"`           // Unix timestamp

	// Relationships
	Image *Image `gorm:"foreignKey:ImageID" json:"image,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (FavoriteImage) TableName() string {
	return "favorite_images"
}
