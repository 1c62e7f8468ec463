package pyramid

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
)

// Backend is the pixel work the builder delegates.
type Backend interface {
	// Halve resamples img to round(w/2) x round(h/2).
	Halve(img image.Image) (image.Image, error)
	// Crop copies r out of img; r must lie within img.
	Crop(img image.Image, r image.Rectangle) (image.Image, error)
}

// Spec fixes the parameters of one pyramid build.
type Spec struct {
	Width    int
	Height   int
	TileSize int
	Overlap  int
	Format   string
}

// EmitFunc receives every tile together with its cropped pixels.
type EmitFunc func(t Tile, img image.Image) error

// LevelFunc receives the full raster of a level after its tiles were emitted.
type LevelFunc func(level int, img image.Image) error

// Builder walks a source image from its finest level to its coarsest.
type Builder struct {
	backend Backend
	logger  logrus.FieldLogger
}

func NewBuilder(backend Backend, logger logrus.FieldLogger) *Builder {
	return &Builder{
		backend: backend,
		logger:  logger,
	}
}

// Build emits every tile of src, level by level. onLevel may be nil.
// The first failure stops the build; a partly emitted pyramid is never
// completed afterwards.
func (b *Builder) Build(ctx context.Context, src image.Image, spec Spec, emit EmitFunc, onLevel LevelFunc) error {
	bounds := src.Bounds()
	if bounds.Dx() != spec.Width || bounds.Dy() != spec.Height {
		return fmt.Errorf("source is %dx%d, spec says %dx%d: %w",
			bounds.Dx(), bounds.Dy(), spec.Width, spec.Height, ErrInvalidDimensions)
	}
	plan, err := NewPlan(spec.Width, spec.Height)
	if err != nil {
		return err
	}

	cur := src
	w, h := plan.Width, plan.Height
	for level := plan.Levels; level >= 0; level-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.logger.Debugf("level %d size %dx%d", level, w, h)

		tiles, err := Partition(level, w, h, spec.TileSize, spec.Overlap)
		if err != nil {
			return err
		}
		for _, t := range tiles {
			crop, err := b.backend.Crop(cur, t.Bounds())
			if err != nil {
				return fmt.Errorf("crop tile %s window %v: %w", t, t.Bounds(), err)
			}
			if err := emit(t, crop); err != nil {
				return fmt.Errorf("emit tile %s: %w", t, err)
			}
		}
		if onLevel != nil {
			if err := onLevel(level, cur); err != nil {
				return fmt.Errorf("level %d: %w", level, err)
			}
		}
		if level == 0 {
			break
		}

		w, h = Halve(w), Halve(h)
		next, err := b.backend.Halve(cur)
		if err != nil {
			return fmt.Errorf("halve level %d: %w", level, err)
		}
		if got := next.Bounds(); got.Dx() != w || got.Dy() != h {
			return fmt.Errorf("halve level %d: got %dx%d, want %dx%d: %w",
				level, got.Dx(), got.Dy(), w, h, ErrBackend)
		}
		cur = next
	}
	return nil
}
