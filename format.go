package main

// Default pyramid and collection geometry
const (
	DefaultTileSize           = 256
	DefaultOverlap            = 1
	DefaultCollectionTileSize = 256
	DefaultMaxLevel           = 8
)

// Tile formats
const (
	JPG  = "jpg"
	JPEG = "jpeg"
	PNG  = "png"
	GIF  = "gif"
	TIF  = "tif"
	TIFF = "tiff"
	BMP  = "bmp"
)

var tileFormats = []string{JPG, JPEG, PNG, GIF, TIF, TIFF, BMP}

func isTileFormat(name string) bool {
	for _, f := range tileFormats {
		if f == name {
			return true
		}
	}
	return false
}

// Descriptor and bookkeeping file extensions
const (
	DZIExt     = ".dzi"
	DZCExt     = ".dzc"
	XMLExt     = ".xml"
	JournalExt = ".building"
	CatalogExt = ".db"
)

func imageExt(xml bool) string {
	if xml {
		return XMLExt
	}
	return DZIExt
}

func collectionExt(xml bool) string {
	if xml {
		return XMLExt
	}
	return DZCExt
}
