package backend

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deepzoom/dzc"
	"deepzoom/pyramid"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{0xff, 0, 0, 0xff}
	green = color.NRGBA{0, 0xff, 0, 0xff}
	black = color.NRGBA{0, 0, 0, 0xff}
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New("bilinear", 90)
	require.NoError(t, err)
	return b
}

func nrgba(c color.Color) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func TestNew(t *testing.T) {
	_, err := New("lanczos9", 90)
	assert.Error(t, err)

	_, err = New("bicubic", 0)
	assert.Error(t, err)

	for _, name := range []string{"", "NearestNeighbor", "Bilinear", "Bicubic", "MitchellNetravali", "Lanczos2", "Lanczos3"} {
		_, err := Interpolation(name)
		assert.NoError(t, err, name)
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"jpg", "jpeg", "png", "gif", "tif", "tiff", "bmp", "PNG", ".png"} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("webp")
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"black", black},
		{"White", color.NRGBA{0xff, 0xff, 0xff, 0xff}},
		{"transparent", color.NRGBA{}},
		{"#f00", red},
		{"#00ff00", green},
		{"#0000ff80", color.NRGBA{0, 0, 0xff, 0x80}},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, nrgba(c), tt.in)
	}
	for _, bad := range []string{"chartreusy", "#12", "#zzzzzz"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestHalve(t *testing.T) {
	b := newBackend(t)
	img, err := b.Halve(imaging.New(13, 15, red))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 7, 8), img.Bounds())

	img, err = b.Halve(img)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	img, err = b.Halve(imaging.New(1, 1, red))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
}

func TestCrop(t *testing.T) {
	b := newBackend(t)
	src := imaging.Paste(imaging.New(10, 10, black), imaging.New(2, 2, red), image.Pt(4, 4))

	tile, err := b.Crop(src, image.Rect(3, 3, 7, 6))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), tile.Bounds())
	assert.Equal(t, black, nrgba(tile.At(0, 0)))
	assert.Equal(t, red, nrgba(tile.At(1, 1)))

	_, err = b.Crop(src, image.Rect(8, 8, 11, 10))
	assert.ErrorIs(t, err, pyramid.ErrBounds)

	_, err = b.Crop(src, image.Rect(-1, 0, 2, 2))
	assert.ErrorIs(t, err, pyramid.ErrBounds)
}

func TestCompositeOver(t *testing.T) {
	b := newBackend(t)
	canvas := b.NewCanvas(8, 8, color.Black)

	out, err := b.CompositeOver(canvas, imaging.New(2, 2, red), image.Pt(4, 2))
	require.NoError(t, err)
	assert.Equal(t, red, nrgba(out.At(4, 2)))
	assert.Equal(t, red, nrgba(out.At(5, 3)))
	assert.Equal(t, black, nrgba(out.At(6, 2)))

	// Transparent pixels leave the canvas untouched.
	out, err = b.CompositeOver(out, imaging.New(2, 2, color.Transparent), image.Pt(4, 2))
	require.NoError(t, err)
	assert.Equal(t, red, nrgba(out.At(4, 2)))

	_, err = b.CompositeOver(canvas, imaging.New(4, 4, red), image.Pt(6, 0))
	assert.ErrorIs(t, err, pyramid.ErrBounds)
}

func TestPadToAspect(t *testing.T) {
	b := newBackend(t)

	img := b.PadToAspect(imaging.New(100, 50, red), 1, color.Black)
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	assert.Equal(t, black, nrgba(img.At(0, 0)))
	assert.Equal(t, red, nrgba(img.At(50, 50)))

	img = b.PadToAspect(imaging.New(50, 100, red), 2, color.Black)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	src := imaging.New(30, 20, red)
	assert.Equal(t, image.Image(src), b.PadToAspect(src, 0, color.Black))
	assert.Equal(t, image.Image(src), b.PadToAspect(src, 1.5, color.Black))
}

func TestSaveLoad(t *testing.T) {
	b := newBackend(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "0_0.png")

	src := imaging.Paste(imaging.New(5, 3, black), imaging.New(1, 1, green), image.Pt(2, 1))
	require.NoError(t, b.Save(path, src, "png"))

	img, err := b.Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())
	assert.Equal(t, green, nrgba(img.At(2, 1)))
	assert.Equal(t, black, nrgba(img.At(0, 0)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = b.Load(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, pyramid.ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.png"), []byte("not an image"), 0644))
	_, err = b.Load(filepath.Join(dir, "junk.png"))
	assert.ErrorIs(t, err, pyramid.ErrDecode)

	err = b.Save(filepath.Join(dir, "nope", "0_0.png"), src, "png")
	assert.ErrorIs(t, err, pyramid.ErrIO)
}

func TestDecode(t *testing.T) {
	b := newBackend(t)
	_, err := b.Decode(strings.NewReader("GIF89a garbage"))
	assert.ErrorIs(t, err, pyramid.ErrDecode)

	_, err = b.Open(filepath.Join(t.TempDir(), "absent.jpg"))
	assert.ErrorIs(t, err, pyramid.ErrIO)
}

func TestEncodeDeterministic(t *testing.T) {
	b := newBackend(t)
	src := imaging.Paste(imaging.New(16, 16, black), imaging.New(4, 4, red), image.Pt(3, 3))

	for _, format := range []string{"jpg", "png", "gif", "tif", "bmp"} {
		var first, second bytes.Buffer
		require.NoError(t, b.Encode(&first, src, format), format)
		require.NoError(t, b.Encode(&second, src, format), format)
		if format != "gif" {
			assert.Equal(t, first.Bytes(), second.Bytes(), format)
		}

		img, err := b.Decode(&first)
		require.NoError(t, err, format)
		assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds(), format)
	}

	assert.ErrorIs(t, b.Encode(&bytes.Buffer{}, src, "xcf"), pyramid.ErrBackend)
}

func TestFileStore(t *testing.T) {
	b := newBackend(t)
	logger, _ := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "collection_files")
	store := dzc.NewFileStore(dir, "png", b)

	p, err := dzc.NewPacker(dzc.Spec{TileSize: 16, MaxLevel: 4, Format: "png", Background: color.Black}, store, b, logger)
	require.NoError(t, err)

	p.RegisterMember(2, 2, "a")
	require.NoError(t, p.PackLevel(1, imaging.New(2, 2, red)))
	p.RegisterMember(2, 2, "b")
	require.NoError(t, p.PackLevel(1, imaging.New(2, 2, green)))

	path := store.Path(dzc.CanvasKey{Level: 1})
	assert.Equal(t, filepath.Join(dir, "1", "0_0.png"), path)

	canvas, err := b.Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), canvas.Bounds())
	assert.Equal(t, red, nrgba(canvas.At(1, 1)))
	assert.Equal(t, green, nrgba(canvas.At(2, 0)))
	assert.Equal(t, black, nrgba(canvas.At(4, 0)))
}
