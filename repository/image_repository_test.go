package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/tannerhart/imagerbackend/database"
	"github.com/tannerhart/imagerbackend/models"
	"github.com/tannerhart/imagerbackend/utils"
)

func TestUpsertResultIsIdempotentByPath(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)
	folder := mustCreateFolder(t, db, "/photos/trip")

	first := mustUpsertImage(t, db, ImageResult{
		FolderID:    folder.ID,
		FileName:    "cat.jpg",
		FilePath:    "/photos/trip/cat.jpg",
		ObjectName:  "Cat",
		Description: "A sleeping cat",
		Confidence:  0.9,
		Status:      database.StatusOK,
	})

	second, err := repo.UpsertResult(ImageResult{
		FolderID:    folder.ID,
		FileName:    "cat.jpg",
		FilePath:    "/photos/trip/cat.jpg",
		ObjectName:  "Tabby Cat",
		Description: "An awake tabby cat",
		Confidence:  0.95,
		Status:      database.StatusOK,
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected same row to be updated, got IDs %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.Image{}).Where("file_path = ?", "/photos/trip/cat.jpg").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 row for the path, got %d", count)
	}

	stored, err := repo.GetByPath("/photos/trip/cat.jpg")
	if err != nil {
		t.Fatalf("lookup after upsert failed: %v", err)
	}
	if stored.ObjectName != "Tabby Cat" || stored.Confidence != 0.95 {
		t.Errorf("expected second call's values, got object=%q confidence=%v", stored.ObjectName, stored.Confidence)
	}
}

func TestUpsertResultStoresMetadata(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)
	folder := mustCreateFolder(t, db, "/photos/meta")

	width, height := 4000, 3000
	make_, model := "Canon", "EOS R5"
	taken := time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC)
	meta := &utils.Metadata{
		Width:       &width,
		Height:      &height,
		CameraMake:  &make_,
		CameraModel: &model,
		DateTaken:   &taken,
	}

	mustUpsertImage(t, db, ImageResult{
		FolderID:   folder.ID,
		FileName:   "shot.jpg",
		FilePath:   "/photos/meta/shot.jpg",
		ObjectName: "Bridge",
		Status:     database.StatusOK,
		Metadata:   meta,
	})

	stored, err := repo.GetByPath("/photos/meta/shot.jpg")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Width == nil || *stored.Width != 4000 {
		t.Errorf("expected width 4000, got %v", stored.Width)
	}
	if stored.CameraMake == nil || *stored.CameraMake != "Canon" {
		t.Errorf("expected camera make Canon, got %v", stored.CameraMake)
	}
	if stored.DateTaken == nil || *stored.DateTaken != taken.Unix() {
		t.Errorf("expected date taken %d, got %v", taken.Unix(), stored.DateTaken)
	}
	if stored.MetadataJSON == nil {
		t.Fatal("expected metadata JSON blob to be stored")
	}
}

func TestSearchIsCaseInsensitiveAndSetLike(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)
	folder := mustCreateFolder(t, db, "/photos/search")

	make_ := "Camera Corp" // matches the query in a second field as well
	mustUpsertImage(t, db, ImageResult{
		FolderID:    folder.ID,
		FileName:    "old.jpg",
		FilePath:    "/photos/search/old.jpg",
		ObjectName:  "Vintage Camera",
		Description: "A well-preserved rangefinder",
		Status:      database.StatusOK,
		Metadata:    &utils.Metadata{CameraMake: &make_},
	})
	mustUpsertImage(t, db, ImageResult{
		FolderID:    folder.ID,
		FileName:    "tree.jpg",
		FilePath:    "/photos/search/tree.jpg",
		ObjectName:  "Oak Tree",
		Description: "A large oak",
		Status:      database.StatusOK,
	})

	for _, query := range []string{"camera", "Camera", "CAMERA"} {
		results, err := repo.Search(query)
		if err != nil {
			t.Fatalf("search %q failed: %v", query, err)
		}
		if len(results) != 1 {
			t.Fatalf("search %q: expected 1 result even with multiple matching fields, got %d", query, len(results))
		}
		if results[0].ObjectName != "Vintage Camera" {
			t.Errorf("search %q: unexpected result %q", query, results[0].ObjectName)
		}
	}

	results, err := repo.Search("telescope")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for telescope, got %d", len(results))
	}
}

func TestDeleteImageCascadesFavorite(t *testing.T) {
	db := setupTestDB(t)
	imageRepo := NewImageRepository(db)
	favRepo := NewFavoriteRepository(db)
	folder := mustCreateFolder(t, db, "/photos/fav")

	image := mustUpsertImage(t, db, ImageResult{
		FolderID:   folder.ID,
		FileName:   "pin.jpg",
		FilePath:   "/photos/fav/pin.jpg",
		ObjectName: "Lighthouse",
		Status:     database.StatusOK,
	})
	if _, err := favRepo.Add(image.ID, nil, nil, 0); err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}

	if err := imageRepo.Delete(image.ID); err != nil {
		t.Fatalf("failed to delete image: %v", err)
	}

	var favCount int64
	db.Model(&models.FavoriteImage{}).Where("image_id = ?", image.ID).Count(&favCount)
	if favCount != 0 {
		t.Errorf("expected favorite to be cascade-deleted, found %d row(s)", favCount)
	}

	if _, err := imageRepo.GetByID(image.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetByPathMiss(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)
	if _, err := repo.GetByPath("/nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByFolderNaturalOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImageRepository(db)
	folder := mustCreateFolder(t, db, "/photos/nat")

	for _, name := range []string{"img10.jpg", "img2.jpg", "img1.jpg"} {
		mustUpsertImage(t, db, ImageResult{
			FolderID:   folder.ID,
			FileName:   name,
			FilePath:   "/photos/nat/" + name,
			ObjectName: "Thing",
			Status:     database.StatusOK,
		})
	}

	images, err := repo.ListByFolder(folder.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	got := []string{images[0].FileName, images[1].FileName, images[2].FileName}
	want := []string{"img1.jpg", "img2.jpg", "img10.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected natural order %v, got %v", want, got)
		}
	}
}
