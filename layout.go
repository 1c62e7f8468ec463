package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"deepzoom/pyramid"
)

// Layout names the files of one pyramid or collection:
// <Dir>/<Name><Ext> and <Dir>/<Name>_files/<level>/<col>_<row>.<Format>
type Layout struct {
	Dir    string
	Name   string
	Ext    string
	Format string
}

// newLayout places the output for source inside dir.
func newLayout(dir, source, ext, format string) Layout {
	return Layout{
		Dir:    dir,
		Name:   sourceName(source),
		Ext:    ext,
		Format: format,
	}
}

// collectionLayout takes the collection path with or without extension.
func collectionLayout(path, ext, format string) Layout {
	return Layout{
		Dir:    filepath.Dir(path),
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Ext:    ext,
		Format: format,
	}
}

func (l Layout) Descriptor() string {
	return filepath.Join(l.Dir, l.Name+l.Ext)
}

func (l Layout) FilesDir() string {
	return filepath.Join(l.Dir, l.Name+"_files")
}

func (l Layout) LevelDir(level int) string {
	return filepath.Join(l.FilesDir(), fmt.Sprintf("%d", level))
}

// TilePath is where tile t of the pyramid is written.
func (l Layout) TilePath(t pyramid.Tile) string {
	return filepath.Join(l.LevelDir(t.Level), fmt.Sprintf("%d_%d.%s", t.Col, t.Row, l.Format))
}

func (l Layout) JournalPath() string {
	return filepath.Join(l.Dir, l.Name+JournalExt)
}

func (l Layout) CatalogPath() string {
	return filepath.Join(l.Dir, l.Name+CatalogExt)
}
