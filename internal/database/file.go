package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// File represents a sellable PDF document.
type File struct {
	gorm.Model
	Title       string `gorm:"not null"`
	Description string
	Author      string
	// Price is the price in Toman.
	Price      int64 `gorm:"not null"`
	TotalPages int   `gorm:"not null"`
	// PreviewPages is the number of pages visible without a license. Zero means the configured default.
	PreviewPages int
	WordCount    int
	SizeBytes    int64
	// StorageKey is the key of the PDF in the blob store.
	StorageKey string `gorm:"uniqueIndex;not null"`
	Published  bool   `gorm:"index"`
}

// FileDB defines the interface for file-related database operations.
type FileDB interface {
	CreateFile(ctx context.Context, file *File) error
	GetFileByID(ctx context.Context, id uint) (*File, error)
	ListFiles(ctx context.Context, publishedOnly bool) ([]File, error)
	SetFilePublished(ctx context.Context, id uint, published bool) error
}

func (c *Client) CreateFile(ctx context.Context, file *File) error {
	if err := c.withContext(ctx).Create(file).Error; err != nil {
		log.Error("failed to create file", "error", err)
		return translateError(err)
	}
	return nil
}

func (c *Client) GetFileByID(ctx context.Context, id uint) (*File, error) {
	var file File
	if err := c.withContext(ctx).First(&file, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &file, nil
}

func (c *Client) ListFiles(ctx context.Context, publishedOnly bool) ([]File, error) {
	var files []File
	query := c.withContext(ctx).Order("created_at DESC")
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	if err := query.Find(&files).Error; err != nil {
		log.Error("failed to list files", "error", err)
		return nil, err
	}
	return files, nil
}

func (c *Client) SetFilePublished(ctx context.Context, id uint, published bool) error {
	result := c.withContext(ctx).Model(&File{}).Where("id = ?", id).Update("published", published)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
