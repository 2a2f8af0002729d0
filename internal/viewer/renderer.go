package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNothingToRender is returned when the policy allows zero pages.
var ErrNothingToRender = errors.New("no viewable pages")

func init() {
	// pdfcpu would otherwise create a config dir in the user's home on first use.
	api.DisableConfigDir()
}

// RenderOptions controls a single render.
type RenderOptions struct {
	Policy Policy
	// Watermark is stamped on every page when not empty.
	Watermark string
}

// Renderer produces the PDF a reader receives.
type Renderer struct {
	cfg *config.WatermarkConfig
}

// NewRenderer creates a renderer. A nil config disables watermarking.
func NewRenderer(cfg *config.WatermarkConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render writes the document to w, trimmed to the policy's page limit and watermarked.
func (r *Renderer) Render(ctx context.Context, src io.ReadSeeker, w io.Writer, opts RenderOptions) error {
	maxPages := opts.Policy.MaxViewablePages()
	if maxPages < 1 {
		return ErrNothingToRender
	}

	conf := model.NewDefaultConfiguration()
	var cur io.ReadSeeker = src

	if opts.Policy.IsPreview() {
		var trimmed bytes.Buffer
		if err := api.Trim(cur, &trimmed, []string{fmt.Sprintf("1-%d", maxPages)}, conf); err != nil {
			return fmt.Errorf("failed to trim document: %w", err)
		}
		cur = bytes.NewReader(trimmed.Bytes())
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if r.watermarkEnabled() && opts.Watermark != "" {
		wm, err := api.TextWatermark(opts.Watermark, r.watermarkDescription(), true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to build watermark: %w", err)
		}
		var stamped bytes.Buffer
		if err := api.AddWatermarks(cur, &stamped, nil, wm, conf); err != nil {
			return fmt.Errorf("failed to watermark document: %w", err)
		}
		cur = bytes.NewReader(stamped.Bytes())
	}

	if _, err := cur.Seek(0, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(w, cur)
	if err != nil {
		return err
	}
	log.Debug("rendered document", "pages", maxPages, "preview", opts.Policy.IsPreview(), "bytes", n)
	return nil
}

// PageCount returns the number of pages of a PDF.
func PageCount(src io.ReadSeeker) (int, error) {
	return api.PageCount(src, model.NewDefaultConfiguration())
}

func (r *Renderer) watermarkEnabled() bool {
	return r.cfg != nil && r.cfg.Enabled
}

func (r *Renderer) watermarkDescription() string {
	return fmt.Sprintf("fontname:Helvetica, points:%d, rotation:%d, opacity:%.2f, fillcolor:#808080, scalefactor:1 abs",
		r.cfg.FontSize, r.cfg.Rotation, r.cfg.Opacity)
}

// WatermarkText returns the text stamped on a reader's copy.
func WatermarkText(email string, phone *string, now time.Time) string {
	parts := []string{strings.TrimSpace(email)}
	if phone != nil && *phone != "" {
		parts = append(parts, *phone)
	}
	parts = append(parts, now.Format("2006-01-02"))
	return strings.Join(parts, " | ")
}
