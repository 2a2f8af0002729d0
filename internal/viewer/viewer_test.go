package viewer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/pdftest"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		wantMax   int
		wantPrev  bool
		allowed   []int
		forbidden []int
	}{
		{
			name:      "preview",
			policy:    Policy{TotalPages: 120, PreviewPages: 5},
			wantMax:   5,
			wantPrev:  true,
			allowed:   []int{1, 5},
			forbidden: []int{0, 6, 120},
		},
		{
			name:      "licensed",
			policy:    Policy{TotalPages: 120, PreviewPages: 5, Licensed: true},
			wantMax:   120,
			allowed:   []int{1, 6, 120},
			forbidden: []int{0, 121},
		},
		{
			name:      "preview larger than document",
			policy:    Policy{TotalPages: 3, PreviewPages: 10},
			wantMax:   3,
			allowed:   []int{1, 3},
			forbidden: []int{4},
		},
		{
			name:      "no preview",
			policy:    Policy{TotalPages: 10},
			wantMax:   0,
			wantPrev:  true,
			forbidden: []int{0, 1},
		},
		{
			name:      "negative values",
			policy:    Policy{TotalPages: -1, PreviewPages: -5},
			wantMax:   0,
			forbidden: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMax, tt.policy.MaxViewablePages())
			assert.Equal(t, tt.wantPrev, tt.policy.IsPreview())
			for _, p := range tt.allowed {
				assert.True(t, tt.policy.CanView(p), "page %d", p)
			}
			for _, p := range tt.forbidden {
				assert.False(t, tt.policy.CanView(p), "page %d", p)
			}
		})
	}
}

func TestWatermarkText(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "reader@example.com | 2024-03-20", WatermarkText(" reader@example.com ", nil, now))
	assert.Equal(t, "reader@example.com | 09121234567 | 2024-03-20",
		WatermarkText("reader@example.com", lo.ToPtr("09121234567"), now))
}

func TestRenderer_Preview(t *testing.T) {
	src := pdftest.Document(t, "Sample", 8)
	r := NewRenderer(nil)

	var out bytes.Buffer
	err := r.Render(context.Background(), bytes.NewReader(src), &out, RenderOptions{
		Policy: Policy{TotalPages: 8, PreviewPages: 3},
	})
	require.NoError(t, err)

	pages, err := PageCount(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestRenderer_LicensedWithWatermark(t *testing.T) {
	src := pdftest.Document(t, "Sample", 4)
	r := NewRenderer(&config.WatermarkConfig{Enabled: true, Opacity: 0.2, FontSize: 24, Rotation: 45})

	var out bytes.Buffer
	err := r.Render(context.Background(), bytes.NewReader(src), &out, RenderOptions{
		Policy:    Policy{TotalPages: 4, PreviewPages: 1, Licensed: true},
		Watermark: "reader@example.com | 2024-03-20",
	})
	require.NoError(t, err)
	assert.NotEqual(t, src, out.Bytes())

	pages, err := PageCount(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, pages)

	stamped, err := api.HasWatermarks(bytes.NewReader(out.Bytes()), model.NewDefaultConfiguration())
	require.NoError(t, err)
	assert.True(t, stamped)
}

func TestRenderer_PreviewWithWatermark(t *testing.T) {
	src := pdftest.Document(t, "Sample", 4)
	r := NewRenderer(&config.WatermarkConfig{Enabled: true, Opacity: 0.2, FontSize: 24, Rotation: 45})

	var out bytes.Buffer
	err := r.Render(context.Background(), bytes.NewReader(src), &out, RenderOptions{
		Policy:    Policy{TotalPages: 4, PreviewPages: 2},
		Watermark: "reader@example.com | 2024-03-20",
	})
	require.NoError(t, err)

	pages, err := PageCount(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	stamped, err := api.HasWatermarks(bytes.NewReader(out.Bytes()), model.NewDefaultConfiguration())
	require.NoError(t, err)
	assert.True(t, stamped)
}

func TestRenderer_WatermarkDisabled(t *testing.T) {
	src := pdftest.Document(t, "Sample", 2)
	r := NewRenderer(&config.WatermarkConfig{Enabled: false})

	var out bytes.Buffer
	err := r.Render(context.Background(), bytes.NewReader(src), &out, RenderOptions{
		Policy:    Policy{TotalPages: 2, Licensed: true},
		Watermark: "reader@example.com | 2024-03-20",
	})
	require.NoError(t, err)

	stamped, err := api.HasWatermarks(bytes.NewReader(out.Bytes()), model.NewDefaultConfiguration())
	require.NoError(t, err)
	assert.False(t, stamped)
}

func TestRenderer_NothingToRender(t *testing.T) {
	src := pdftest.Document(t, "Sample", 2)
	err := NewRenderer(nil).Render(context.Background(), bytes.NewReader(src), &bytes.Buffer{}, RenderOptions{
		Policy: Policy{TotalPages: 2},
	})
	assert.ErrorIs(t, err, ErrNothingToRender)
}
