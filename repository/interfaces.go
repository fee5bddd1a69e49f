package repository

import (
	"github.com/tannerhart/imagerbackend/models"
	"github.com/tannerhart/imagerbackend/utils"
)

// FolderRepositoryInterface defines the methods for folder data operations
type FolderRepositoryInterface interface {
	GetOrCreate(name, path string) (*models.Folder, error)
	GetByID(id uint) (*models.Folder, error)
	GetByPath(path string) (*models.Folder, error)
	ListAll() ([]models.Folder, error)
	Delete(id uint) error
}

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	UpsertResult(res ImageResult) (*models.Image, error)
	GetByID(id uint) (*models.Image, error)
	GetByPath(filePath string) (*models.Image, error)
	ListByFolder(folderID uint) ([]models.Image, error)
	Search(query string) ([]models.Image, error)
	Delete(id uint) error
}

// FavoriteRepositoryInterface defines the methods for favorite data operations
type FavoriteRepositoryInterface interface {
	Add(imageID uint, customLabel, note *string, displayOrder int) (*models.FavoriteImage, error)
	GetByID(id uint) (*models.FavoriteImage, error)
	ListAll() ([]models.FavoriteImage, error)
	Update(id uint, customLabel, note *string, displayOrder *int) (*models.FavoriteImage, error)
	Remove(id uint) error
}

// ImageResult carries one analysis outcome into the store. Metadata and
// ThumbnailPath are optional; failure placeholders persist without either.
type ImageResult struct {
	FolderID      uint
	FileName      string
	FilePath      string
	ObjectName    string
	Description   string
	Confidence    float64
	Status        string
	Metadata      *utils.Metadata
	ThumbnailPath *string
}
