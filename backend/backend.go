/*
Package backend implements the pixel operations of the pyramid builder and
the collection packer on top of disintegration/imaging, with nfnt/resize
doing the halving and a median cut quantizer preparing GIF tiles.

Every raster it returns is an *image.NRGBA anchored at (0, 0).
*/
package backend

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"deepzoom/pyramid"

	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/nfnt/resize"
	"golang.org/x/image/colornames"
	_ "golang.org/x/image/webp"
)

// Backend decodes, resamples, crops, composites and encodes rasters.
type Backend struct {
	interp  resize.InterpolationFunction
	quality int
}

// New returns a backend halving with the named interpolation and writing
// JPEG tiles at the given quality.
func New(resample string, quality int) (*Backend, error) {
	interp, err := Interpolation(resample)
	if err != nil {
		return nil, err
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range 1-100", quality)
	}
	return &Backend{
		interp:  interp,
		quality: quality,
	}, nil
}

// Interpolation returns the resize function for name. An empty name selects
// Bilinear.
func Interpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "nearestneighbor", "nearest":
		return resize.NearestNeighbor, nil
	case "", "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchellnetravali":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return 0, fmt.Errorf("unrecognized interpolation '%s'", name)
	}
}

// ParseFormat maps a tile format name such as "jpg" or "png" to its codec.
func ParseFormat(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("unsupported tile format '%s'", name)
	}
	return f, nil
}

// ParseColor accepts an SVG color name ("black", "white", ...),
// "transparent", or #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" || s == "none" {
		return color.NRGBA{}, nil
	}
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("unknown color '%s'", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	var c color.NRGBA
	if len(hex) != 8 {
		return nil, fmt.Errorf("bad color '%s'", s)
	}
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
		return nil, fmt.Errorf("bad color '%s': %v", s, err)
	}
	return c, nil
}

// Decode reads a source image.
func (b *Backend) Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, pyramid.ErrDecode)
	}
	return imaging.Clone(img), nil
}

// Open decodes the source image at path.
func (b *Backend) Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, pyramid.ErrIO)
	}
	defer f.Close()

	img, err := b.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Load decodes a previously written tile, or reports pyramid.ErrNotFound.
func (b *Backend) Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, pyramid.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, pyramid.ErrIO)
	}
	defer f.Close()

	img, err := b.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Halve resamples img to round(w/2) x round(h/2).
func (b *Backend) Halve(img image.Image) (image.Image, error) {
	r := img.Bounds()
	w, h := pyramid.Halve(r.Dx()), pyramid.Halve(r.Dy())
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("halve %dx%d: %w", r.Dx(), r.Dy(), pyramid.ErrBackend)
	}
	return imaging.Clone(resize.Resize(uint(w), uint(h), img, b.interp)), nil
}

// Crop copies r, given relative to the top-left corner of img.
func (b *Backend) Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()
	abs := r.Add(bounds.Min)
	if r.Empty() || !abs.In(bounds) {
		return nil, fmt.Errorf("crop %v of %dx%d: %w", r, bounds.Dx(), bounds.Dy(), pyramid.ErrBounds)
	}
	return imaging.Crop(img, abs), nil
}

// NewCanvas returns a width x height raster filled with bg.
func (b *Backend) NewCanvas(width, height int, bg color.Color) image.Image {
	return imaging.New(width, height, bg)
}

// CompositeOver draws src over dst with its top-left corner at at.
func (b *Backend) CompositeOver(dst, src image.Image, at image.Point) (image.Image, error) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	if !r.In(image.Rect(0, 0, dst.Bounds().Dx(), dst.Bounds().Dy())) {
		return nil, fmt.Errorf("composite %v into %dx%d: %w", r, dst.Bounds().Dx(), dst.Bounds().Dy(), pyramid.ErrBounds)
	}
	return imaging.Overlay(dst, src, dst.Bounds().Min.Add(at), 1.0), nil
}

// PadToAspect centers img on a bg canvas whose width/height ratio is
// aspect, growing only one dimension. A non-positive aspect returns img.
func (b *Backend) PadToAspect(img image.Image, aspect float64, bg color.Color) image.Image {
	if aspect <= 0 {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if float64(w)/float64(h) < aspect {
		w = int(math.Round(float64(h) * aspect))
	} else {
		h = int(math.Round(float64(w) / aspect))
	}
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return img
	}
	return imaging.PasteCenter(imaging.New(w, h, bg), img)
}

// Encode writes img in the named format.
func (b *Backend) Encode(w io.Writer, img image.Image, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return fmt.Errorf("%v: %w", err, pyramid.ErrBackend)
	}
	opts := []imaging.EncodeOption{imaging.JPEGQuality(b.quality)}
	if f == imaging.GIF {
		opts = append(opts, imaging.GIFQuantizer(quantize.MedianCutQuantizer{}), imaging.GIFNumColors(256))
	}
	if err := imaging.Encode(w, img, f, opts...); err != nil {
		return fmt.Errorf("encode %s: %v: %w", format, err, pyramid.ErrBackend)
	}
	return nil
}

// Save encodes img to path. The file is written under a temporary name and
// renamed into place, so readers never see a truncated tile.
func (b *Backend) Save(path string, img image.Image, format string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %v: %w", path, err, pyramid.ErrIO)
	}
	defer os.Remove(tmp.Name())

	if err := b.Encode(tmp, img, format); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %v: %w", path, err, pyramid.ErrIO)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %v: %w", path, err, pyramid.ErrIO)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %v: %w", path, err, pyramid.ErrIO)
	}
	return nil
}
