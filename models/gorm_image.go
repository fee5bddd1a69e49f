package models

// Image represents an analyzed image and its results in the database using GORM.
// It corresponds to the 'images' table. FilePath is the natural key: re-analyzing
// the same path overwrites the row in place instead of inserting a duplicate.
type Image struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FolderID uint   `gorm:"not null;index" json:"folder_id"`
	FileName string `gorm:"not null" json:"file_name"`
	FilePath string `gorm:"not null;unique" json:"file_path"`

	ObjectName  string  `gorm:"" json:"object_name"`
	Description string  `gorm:"type:text" json:"description"`
	Confidence  float64 `gorm:"" json:"confidence"`
	Status      string  `gorm:"not null;default:ok" json:"status"` // ok or error
	ProcessedAt int64   `gorm:"not null" json:"processed_at"`      // Unix timestamp

	Width        *int     `gorm:"" json:"width,omitempty"`         // Nullable
	Height       *int     `gorm:"" json:"height,omitempty"`        // Nullable
	CameraMake   *string  `gorm:"" json:"camera_make,omitempty"`   // Nullable
	CameraModel  *string  `gorm:"" json:"camera_model,omitempty"`  // Nullable
	DateTaken    *int64   `gorm:"index" json:"date_taken,omitempty"` // Nullable, Unix timestamp
	FocalLength  *float64 `gorm:"" json:"focal_length,omitempty"`  // Nullable, mm
	ExposureTime *string  `gorm:"" json:"exposure_time,omitempty"` // Nullable, e.g. "1/125"
	Aperture     *float64 `gorm:"" json:"aperture,omitempty"`      // Nullable, F-number
	ISOSpeed     *int     `gorm:"" json:"iso_speed,omitempty"`     // Nullable
	GPSLatitude  *float64 `gorm:"" json:"gps_latitude,omitempty"`  // Nullable, signed decimal degrees
	GPSLongitude *float64 `gorm:"" json:"gps_longitude,omitempty"` // Nullable, signed decimal degrees
	FileSize     *int64   `gorm:"" json:"file_size,omitempty"`     // Nullable, bytes
	FileType     *string  `gorm:"" json:"file_type,omitempty"`     // Nullable, extension without dot

	MetadataJSON  *string `gorm:"type:text" json:"metadata_json,omitempty"` // Nullable, full record as JSON
	ThumbnailPath *string `gorm:"" json:"thumbnail_path,omitempty"`         // Nullable

	// Relationships
	Favorites []FavoriteImage `gorm:"foreignKey:ImageID" json:"favorites,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
