/*
Package descriptor reads and writes the XML documents that describe a Deep
Zoom image (.dzi) and a Deep Zoom collection (.dzc).
*/
package descriptor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	imageNamespace      = "http://schemas.microsoft.com/deepzoom/2008"
	collectionNamespace = "http://schemas.microsoft.com/deepzoom/2009"
)

type Size struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

// Image is the descriptor of a single pyramid.
type Image struct {
	XMLName  xml.Name `xml:"Image"`
	Xmlns    string   `xml:"xmlns,attr,omitempty"`
	TileSize int      `xml:"TileSize,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	Format   string   `xml:"Format,attr"`
	Size     Size     `xml:"Size"`
}

func NewImage(tileSize, overlap int, format string, width, height int) *Image {
	return &Image{
		Xmlns:    imageNamespace,
		TileSize: tileSize,
		Overlap:  overlap,
		Format:   format,
		Size:     Size{Width: width, Height: height},
	}
}

// Item is one member of a collection.
type Item struct {
	XMLName xml.Name `xml:"I"`
	ID      int      `xml:"Id,attr"`
	N       int      `xml:"N,attr"`
	Source  string   `xml:"Source,attr"`
	Size    Size     `xml:"Size"`
}

// Collection is the manifest of a collection.
type Collection struct {
	XMLName    xml.Name `xml:"Collection"`
	Xmlns      string   `xml:"xmlns,attr,omitempty"`
	MaxLevel   int      `xml:"MaxLevel,attr"`
	TileSize   int      `xml:"TileSize,attr"`
	Format     string   `xml:"Format,attr"`
	NextItemID int      `xml:"NextItemId,attr"`
	Items      []Item   `xml:"Items>I"`
}

func NewCollection(maxLevel, tileSize int, format string, nextItemID int) *Collection {
	return &Collection{
		Xmlns:      collectionNamespace,
		MaxLevel:   maxLevel,
		TileSize:   tileSize,
		Format:     format,
		NextItemID: nextItemID,
	}
}

// Add appends a member whose id doubles as its Morton number.
func (c *Collection) Add(id int, source string, width, height int) {
	c.Items = append(c.Items, Item{
		ID:     id,
		N:      id,
		Source: source,
		Size:   Size{Width: width, Height: height},
	})
}

// Encode writes v, an *Image or *Collection, as an XML document.
func Encode(w io.Writer, v interface{}) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile encodes v to path, replacing any previous file only once the
// whole document is written.
func WriteFile(path string, v interface{}) error {
	b := new(bytes.Buffer)
	if err := Encode(b, v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b.Bytes(), 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func ReadImage(r io.Reader) (*Image, error) {
	var img Image
	if err := xml.NewDecoder(r).Decode(&img); err != nil {
		return nil, err
	}
	return &img, nil
}

func ReadCollection(r io.Reader) (*Collection, error) {
	var c Collection
	if err := xml.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
