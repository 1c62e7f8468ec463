package dzc

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"deepzoom/pyramid"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoMember is returned when a level is packed before any member was
	// registered.
	ErrNoMember = errors.New("no member registered")
	// ErrOrder is returned when a member's levels are not packed finest to
	// coarsest.
	ErrOrder = errors.New("levels packed out of order")
)

// Compositor is the pixel work the packer delegates.
type Compositor interface {
	NewCanvas(width, height int, bg color.Color) image.Image
	CompositeOver(dst, src image.Image, at image.Point) (image.Image, error)
}

// Spec fixes the parameters of a collection.
type Spec struct {
	// TileSize is the edge of a canvas tile; a power of two.
	TileSize int
	// MaxLevel is the finest level packed into the collection.
	MaxLevel int
	Format   string
	// Start is the sequence index of the first registered member.
	Start      int
	Background color.Color
}

// Validate checks that every level up to MaxLevel fits at least one member
// per canvas tile edge.
func (s Spec) Validate() error {
	if s.TileSize <= 0 || s.TileSize&(s.TileSize-1) != 0 {
		return fmt.Errorf("collection tile size %d is not a power of two: %w", s.TileSize, pyramid.ErrInvalidDimensions)
	}
	if s.MaxLevel < 0 || ImagesPerTileEdge(s.TileSize, s.MaxLevel) < 1 {
		return fmt.Errorf("collection max level %d with tile size %d: %w", s.MaxLevel, s.TileSize, pyramid.ErrInvalidDimensions)
	}
	if s.Start < 0 {
		return fmt.Errorf("collection start index %d is negative", s.Start)
	}
	return nil
}

// ImagesPerTileEdge is how many level-sized member slots fit along one edge
// of a canvas tile.
func ImagesPerTileEdge(tileSize, level int) int {
	if level < 0 || level >= 31 {
		return 0
	}
	return tileSize >> uint(level)
}

// CanvasKey addresses one canvas tile.
type CanvasKey struct {
	Level int
	Col   int
	Row   int
}

func (k CanvasKey) String() string {
	return fmt.Sprintf("%d/%d_%d", k.Level, k.Col, k.Row)
}

// Member is one image registered in the collection.
type Member struct {
	ID     int
	Width  int
	Height int
	Source string
	Row    int
	Col    int
}

// Slot returns the canvas tile and the pixel offset inside it where the
// member's level raster goes.
func (m Member) Slot(tileSize, level int) (CanvasKey, image.Point) {
	per := ImagesPerTileEdge(tileSize, level)
	key := CanvasKey{Level: level, Col: m.Col / per, Row: m.Row / per}
	at := image.Pt((m.Col%per)<<uint(level), (m.Row%per)<<uint(level))
	return key, at
}

// Manifest is everything needed to describe the collection.
type Manifest struct {
	TileSize int
	MaxLevel int
	Format   string
	NextID   int
	Members  []Member
}

// Packer composites member levels into canvas tiles.
//
// RegisterMember and PackLevel must be called from one goroutine, members
// in registration order and each member's levels finest first. Canvas tiles
// are read, modified and written back under a per-key lock so a Queue may
// run the compositing on its own goroutine.
type Packer struct {
	spec    Spec
	store   Store
	comp    Compositor
	logger  logrus.FieldLogger
	locks   *keyLocks
	next    int
	members []Member

	packedID    int
	packedLevel int

	// OnCanvas, when set, is called after a canvas tile was written.
	OnCanvas func(CanvasKey)
}

func NewPacker(spec Spec, store Store, comp Compositor, logger logrus.FieldLogger) (*Packer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Background == nil {
		spec.Background = color.Black
	}
	return &Packer{
		spec:     spec,
		store:    store,
		comp:     comp,
		logger:   logger,
		locks:    newKeyLocks(),
		next:     spec.Start,
		packedID: -1,
	}, nil
}

// RegisterMember assigns the next sequence index to an image of the given
// original size and makes it the member being packed.
func (p *Packer) RegisterMember(width, height int, source string) int {
	id := p.next
	p.next++
	row, col := Morton(uint32(id))
	p.members = append(p.members, Member{
		ID:     id,
		Width:  width,
		Height: height,
		Source: source,
		Row:    row,
		Col:    col,
	})
	p.logger.Debugf("morton: %d: %d, %d", id, row, col)
	return id
}

// Current returns the member being packed.
func (p *Packer) Current() (Member, bool) {
	if len(p.members) == 0 {
		return Member{}, false
	}
	return p.members[len(p.members)-1], true
}

// PackLevel composites the current member's level raster into its canvas
// tile. Levels finer than MaxLevel are skipped.
func (p *Packer) PackLevel(level int, img image.Image) error {
	m, ok := p.Current()
	if !ok {
		return ErrNoMember
	}
	return p.pack(m, level, img)
}

func (p *Packer) pack(m Member, level int, img image.Image) error {
	if m.ID == p.packedID && level >= p.packedLevel {
		return fmt.Errorf("member %d level %d after level %d: %w", m.ID, level, p.packedLevel, ErrOrder)
	}
	p.packedID, p.packedLevel = m.ID, level

	if level > p.spec.MaxLevel {
		return nil
	}
	key, at := m.Slot(p.spec.TileSize, level)

	unlock := p.locks.lock(key)
	defer unlock()

	canvas, err := p.store.Load(key)
	switch {
	case errors.Is(err, pyramid.ErrNotFound):
		p.logger.Debugf("creating canvas %s", key)
		canvas = p.comp.NewCanvas(p.spec.TileSize, p.spec.TileSize, p.spec.Background)
	case err != nil:
		return fmt.Errorf("load canvas %s: %w", key, err)
	}

	p.logger.Debugf("adding member %d to canvas %s at %dx%d", m.ID, key, at.X, at.Y)
	canvas, err = p.comp.CompositeOver(canvas, img, at)
	if err != nil {
		return fmt.Errorf("composite member %d into canvas %s: %w", m.ID, key, err)
	}
	if err := p.store.Save(key, canvas); err != nil {
		return fmt.Errorf("save canvas %s: %w", key, err)
	}
	if p.OnCanvas != nil {
		p.OnCanvas(key)
	}
	return nil
}

// Finalize returns the manifest of every member registered so far.
func (p *Packer) Finalize() Manifest {
	members := make([]Member, len(p.members))
	copy(members, p.members)
	return Manifest{
		TileSize: p.spec.TileSize,
		MaxLevel: p.spec.MaxLevel,
		Format:   p.spec.Format,
		NextID:   p.next,
		Members:  members,
	}
}
