package models

// Folder represents a scanned image folder in the database using GORM.
// It corresponds to the 'folders' table.
type Folder struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Path        string `gorm:"not null;unique" json:"path"`
	ProcessedAt int64  `gorm:"not null" json:"processed_at"` // Unix timestamp of first batch run

	// Relationships
	Images []Image `gorm:"foreignKey:FolderID" json:"images,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Folder) TableName() string {
	return "folders"
}
