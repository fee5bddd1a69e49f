package repository

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tannerhart/imagerbackend/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_fk=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(&models.Folder{}, &models.Image{}, &models.FavoriteImage{})
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func mustCreateFolder(t *testing.T, db *gorm.DB, path string) *models.Folder {
	t.Helper()
	folder, err := NewFolderRepository(db).GetOrCreate(filepath.Base(path), path)
	if err != nil {
		t.Fatalf("failed to create folder %s: %v", path, err)
	}
	return folder
}

func mustUpsertImage(t *testing.T, db *gorm.DB, res ImageResult) *models.Image {
	t.Helper()
	image, err := NewImageRepository(db).UpsertResult(res)
	if err != nil {
		t.Fatalf("failed to upsert image %s: %v", res.FilePath, err)
	}
	return image
}
