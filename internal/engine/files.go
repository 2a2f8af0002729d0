package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/document"
	"github.com/nashr-app/nashr/internal/viewer"
)

// FileInput holds the metadata of an uploaded file. Empty title falls back to the
// PDF's own title, then to the uploaded file name.
type FileInput struct {
	Title        string
	Description  string
	Author       string
	Price        int64
	PreviewPages int
	Published    bool
	FileName     string
}

// ListFiles returns the catalogue. Unpublished files are only listed for admins.
func (e *Engine) ListFiles(ctx context.Context, includeUnpublished bool) ([]database.File, error) {
	return e.db.ListFiles(ctx, !includeUnpublished)
}

// GetFile returns a file visible to the user.
func (e *Engine) GetFile(ctx context.Context, user *database.User, id uint) (*database.File, error) {
	file, err := e.db.GetFileByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if !file.Published && (user == nil || !user.IsAdmin) {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// SetFilePublished shows or hides a file in the catalogue.
func (e *Engine) SetFilePublished(ctx context.Context, id uint, published bool) error {
	err := e.db.SetFilePublished(ctx, id, published)
	if errors.Is(err, database.ErrNotFound) {
		return ErrFileNotFound
	}
	return err
}

// ViewerPolicy returns the page limit of the file for the user. Anonymous readers
// get the preview, buyers with a completed purchase and admins get every page.
func (e *Engine) ViewerPolicy(ctx context.Context, user *database.User, fileID uint) (*database.File, viewer.Policy, error) {
	file, err := e.GetFile(ctx, user, fileID)
	if err != nil {
		return nil, viewer.Policy{}, err
	}

	licensed := false
	if user != nil {
		if user.IsAdmin {
			licensed = true
		} else if licensed, err = e.db.HasLicense(ctx, user.ID, file.ID); err != nil {
			return nil, viewer.Policy{}, err
		}
	}

	return file, viewer.Policy{
		TotalPages:   file.TotalPages,
		PreviewPages: e.cfg.Viewer.PreviewPages(file.PreviewPages),
		Licensed:     licensed,
	}, nil
}

// OpenDocument writes the PDF the user may read to w: the preview pages for
// readers without a license, the whole document otherwise. Copies served to
// signed-in users carry their watermark.
func (e *Engine) OpenDocument(ctx context.Context, user *database.User, fileID uint, w io.Writer, meta RequestMeta) (viewer.Policy, error) {
	file, policy, err := e.ViewerPolicy(ctx, user, fileID)
	if err != nil {
		return policy, err
	}

	f, err := e.store.Open(file.StorageKey)
	if err != nil {
		return policy, fmt.Errorf("failed to open document %d: %w", file.ID, err)
	}
	defer f.Close() //nolint:errcheck

	opts := viewer.RenderOptions{Policy: policy}
	if user != nil {
		opts.Watermark = viewer.WatermarkText(user.Email, user.Phone, e.now())
	}

	if err := e.renderer.Render(ctx, f, w, opts); err != nil {
		return policy, err
	}

	if user != nil {
		details := fmt.Sprintf("file=%d pages=%d preview=%t", file.ID, policy.MaxViewablePages(), policy.IsPreview())
		e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventFileViewed, details)
	}
	return policy, nil
}

// ImportFile stores an uploaded PDF and creates its catalogue entry.
func (e *Engine) ImportFile(ctx context.Context, r io.Reader, in FileInput) (*database.File, error) {
	if in.Price < 0 || in.PreviewPages < 0 {
		return nil, fmt.Errorf("%w: negative price or preview pages", ErrInvalidDocument)
	}

	key, size, err := e.store.Put(r)
	if err != nil {
		return nil, err
	}

	file, err := e.importStored(ctx, key, size, in)
	if err != nil {
		if derr := e.store.Delete(key); derr != nil {
			log.Warn("failed to remove rejected upload", "key", key, "error", derr)
		}
		return nil, err
	}

	log.Info("imported file", "id", file.ID, "title", file.Title, "pages", file.TotalPages, "size", humanize.IBytes(uint64(size))) //nolint:gosec
	return file, nil
}

func (e *Engine) importStored(ctx context.Context, key string, size int64, in FileInput) (*database.File, error) {
	f, err := e.store.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	info, err := document.Inspect(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	// the renderer works with pdfcpu, so the file has to be readable by it too
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	pages, err := viewer.PageCount(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if pages != info.Pages {
		log.Warn("page count mismatch between parsers", "inspect", info.Pages, "pdfcpu", pages)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = info.Title
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.FileName), filepath.Ext(in.FileName))
	}
	if title == "" || title == "." {
		title = key
	}

	file := &database.File{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Author:       strings.TrimSpace(in.Author),
		Price:        in.Price,
		TotalPages:   pages,
		PreviewPages: in.PreviewPages,
		WordCount:    info.WordCount,
		SizeBytes:    size,
		StorageKey:   key,
		Published:    in.Published,
	}
	if err := e.db.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// ListPurchasedFiles returns the completed purchases of the user.
func (e *Engine) ListPurchasedFiles(ctx context.Context, userID uint) ([]database.Purchase, error) {
	return e.db.ListPurchasedFiles(ctx, userID)
}

// ReadDocument returns the full stored PDF, for the CLI export.
func (e *Engine) ReadDocument(file *database.File) ([]byte, error) {
	f, err := e.store.Open(file.StorageKey)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
