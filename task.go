package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"deepzoom/backend"
	"deepzoom/catalog"
	"deepzoom/descriptor"
	"deepzoom/dzc"
	"deepzoom/pyramid"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// journalBuf is how many tile records may queue up before Record blocks.
const journalBuf = 64

// Task turns a list of source images into pyramids and, when configured,
// packs them into one collection.
type Task struct {
	ID      string
	stdin   io.Reader
	conf    *Conf
	log     logrus.FieldLogger
	backend *backend.Backend
	builder *pyramid.Builder

	packer     *dzc.Packer
	queue      *dzc.Queue
	catalog    *catalog.Catalog
	collection Layout

	mu       sync.Mutex
	journals map[*Journal]struct{}
}

// NewTask prepares a run. conf must be normalized.
func NewTask(conf *Conf, log logrus.FieldLogger) (*Task, error) {
	id, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("task id: %v", err)
	}

	b, err := backend.New(conf.Image.Resample, conf.Image.Quality)
	if err != nil {
		return nil, err
	}
	task := &Task{
		ID:       id,
		stdin:    os.Stdin,
		conf:     conf,
		log:      log,
		backend:  b,
		builder:  pyramid.NewBuilder(b, log),
		journals: make(map[*Journal]struct{}),
	}
	if conf.Collection.Path != "" {
		if err := task.setupCollection(); err != nil {
			task.Close()
			return nil, err
		}
	}
	return task, nil
}

func (task *Task) setupCollection() error {
	conf := task.conf
	task.collection = collectionLayout(conf.Collection.Path, collectionExt(conf.Image.XMLExt), conf.Image.Format)

	bg, err := backend.ParseColor(conf.Collection.Background)
	if err != nil {
		return err
	}
	if err := makeDir(task.collection.Dir); err != nil {
		return err
	}

	start := conf.Collection.Start
	if conf.Collection.Catalog {
		task.catalog, err = catalog.Open(task.collection.CatalogPath())
		if err != nil {
			return fmt.Errorf("open catalog %s: %v: %w", task.collection.CatalogPath(), err, pyramid.ErrIO)
		}
		if !conf.Collection.StartSet {
			if start, err = task.catalog.Next(); err != nil {
				return fmt.Errorf("read catalog %s: %v: %w", task.collection.CatalogPath(), err, pyramid.ErrIO)
			}
		}
	}

	spec := dzc.Spec{
		TileSize:   conf.Collection.TileSize,
		MaxLevel:   conf.Collection.MaxLevel,
		Format:     conf.Image.Format,
		Start:      start,
		Background: bg,
	}
	store := dzc.NewFileStore(task.collection.FilesDir(), conf.Image.Format, task.backend)
	task.packer, err = dzc.NewPacker(spec, store, task.backend, task.log)
	if err != nil {
		return err
	}

	for level := 0; level <= spec.MaxLevel; level++ {
		if err := makeDir(task.collection.LevelDir(level)); err != nil {
			return err
		}
	}
	return nil
}

// checkOutputs rejects sources that would be written to the same pyramid.
func (task *Task) checkOutputs(sources []string) error {
	seen := make(map[string]string, len(sources))
	for _, source := range sources {
		out := newLayout(task.conf.Output.Directory, source, imageExt(task.conf.Image.XMLExt), task.conf.Image.Format).Descriptor()
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%s and %s would both be written to %s", prev, source, out)
		}
		seen[out] = source
	}
	return nil
}

// Run builds every source in order. The first failure stops the run.
func (task *Task) Run(ctx context.Context, sources []string) error {
	start := time.Now()
	if err := task.checkOutputs(sources); err != nil {
		return err
	}

	var collectionJournal *Journal
	if task.packer != nil {
		if err := removeFile(task.collection.Descriptor()); err != nil {
			return err
		}
		j, err := task.openJournal(task.collection.JournalPath())
		if err != nil {
			return err
		}
		collectionJournal = j
		task.packer.OnCanvas = func(k dzc.CanvasKey) {
			j.Record(k.Level, k.Col, k.Row)
		}
		task.queue = dzc.NewQueue(task.packer, 1)
	}

	for _, source := range sources {
		if err := task.buildSource(ctx, source); err != nil {
			return err
		}
	}

	if task.packer != nil {
		if err := task.finishCollection(collectionJournal); err != nil {
			return err
		}
	}

	task.log.Infof("%d image(s) finished in %.3fs", len(sources), time.Since(start).Seconds())
	return nil
}

func (task *Task) decode(source string) (image.Image, error) {
	if source == stdinSource {
		task.log.Debugf("reading from stdin")
		img, err := task.backend.Decode(task.stdin)
		if err != nil {
			return nil, fmt.Errorf("decode stdin: %w", err)
		}
		return img, nil
	}
	task.log.Debugf("reading from %s", source)
	return task.backend.Open(source)
}

func (task *Task) buildSource(ctx context.Context, source string) error {
	conf := task.conf
	layout := newLayout(conf.Output.Directory, source, imageExt(conf.Image.XMLExt), conf.Image.Format)
	log := task.log.WithField("image", layout.Name)

	img, err := task.decode(source)
	if err != nil {
		return err
	}
	if conf.Image.Aspect > 0 {
		bg, err := backend.ParseColor(conf.Image.Background)
		if err != nil {
			return err
		}
		img = task.backend.PadToAspect(img, conf.Image.Aspect, bg)
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	plan, err := pyramid.NewPlan(width, height)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	log.Infof("image is %dx%d, %d levels", width, height, plan.Levels)

	if err := makeDir(layout.FilesDir()); err != nil {
		return err
	}
	if err := removeFile(layout.Descriptor()); err != nil {
		return err
	}
	task.reportStale(log, layout.JournalPath())
	journal, err := task.openJournal(layout.JournalPath())
	if err != nil {
		return err
	}
	defer task.closeJournal(journal)

	spec := pyramid.Spec{
		Width:    width,
		Height:   height,
		TileSize: conf.Image.TileSize,
		Overlap:  conf.Image.Overlap,
		Format:   conf.Image.Format,
	}

	var onLevel pyramid.LevelFunc
	if task.packer != nil {
		label := relSource(task.collection.Dir, layout.Descriptor())
		id := task.packer.RegisterMember(width, height, label)
		log.Debugf("collection member %d", id)
		onLevel = func(level int, raster image.Image) error {
			return task.queue.Submit(level, raster)
		}
	}

	bar := newProgress(layout.Name, plan.TileCount(spec.TileSize), conf.Output.Progress)
	lastDir := ""
	emit := func(t pyramid.Tile, tile image.Image) error {
		if dir := layout.LevelDir(t.Level); dir != lastDir {
			if err := makeDir(dir); err != nil {
				return err
			}
			lastDir = dir
		}
		path := layout.TilePath(t)
		log.Debugf("making tile %s, %dx%d", path, t.Width, t.Height)
		if err := task.backend.Save(path, tile, spec.Format); err != nil {
			return err
		}
		journal.Record(t.Level, t.Col, t.Row)
		bar.Increment()
		return nil
	}

	err = task.builder.Build(ctx, img, spec, emit, onLevel)
	bar.Finish(err == nil)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	doc := descriptor.NewImage(spec.TileSize, spec.Overlap, spec.Format, width, height)
	if err := descriptor.WriteFile(layout.Descriptor(), doc); err != nil {
		return fmt.Errorf("write %s: %v: %w", layout.Descriptor(), err, pyramid.ErrIO)
	}
	if err := task.commitJournal(journal); err != nil {
		return err
	}
	log.Infof("wrote %s", layout.Descriptor())
	return nil
}

func (task *Task) finishCollection(journal *Journal) error {
	defer task.closeJournal(journal)

	q := task.queue
	task.queue = nil
	if err := q.Close(); err != nil {
		return fmt.Errorf("collection %s: %w", task.collection.Descriptor(), err)
	}

	manifest := task.packer.Finalize()
	if task.catalog != nil {
		var err error
		if manifest, err = task.catalog.Merge(manifest); err != nil {
			return fmt.Errorf("update catalog %s: %v: %w", task.collection.CatalogPath(), err, pyramid.ErrIO)
		}
	}

	doc := descriptor.NewCollection(manifest.MaxLevel, manifest.TileSize, manifest.Format, manifest.NextID)
	for _, m := range manifest.Members {
		doc.Add(m.ID, m.Source, m.Width, m.Height)
	}
	if err := descriptor.WriteFile(task.collection.Descriptor(), doc); err != nil {
		return fmt.Errorf("write %s: %v: %w", task.collection.Descriptor(), err, pyramid.ErrIO)
	}
	if err := task.commitJournal(journal); err != nil {
		return err
	}
	task.log.Infof("wrote %s with %d item(s), next id %d", task.collection.Descriptor(), len(manifest.Members), manifest.NextID)
	return nil
}

// reportStale warns about a journal left behind by an unfinished build.
func (task *Task) reportStale(log logrus.FieldLogger, path string) {
	id, tiles, err := ReadJournal(path)
	if err != nil {
		return
	}
	log.Warnf("build %s did not finish (%d tiles written), rebuilding", id, len(tiles))
}

func (task *Task) openJournal(path string) (*Journal, error) {
	j, err := OpenJournal(path, journalBuf)
	if err != nil {
		return nil, err
	}
	task.mu.Lock()
	task.journals[j] = struct{}{}
	task.mu.Unlock()
	return j, nil
}

func (task *Task) commitJournal(j *Journal) error {
	task.mu.Lock()
	delete(task.journals, j)
	task.mu.Unlock()
	return j.Commit()
}

func (task *Task) closeJournal(j *Journal) {
	task.mu.Lock()
	delete(task.journals, j)
	task.mu.Unlock()
	j.Close()
}

// Abort flushes the journals of unfinished builds and leaves them in place.
func (task *Task) Abort() {
	task.mu.Lock()
	defer task.mu.Unlock()

	for j := range task.journals {
		j.Close()
		delete(task.journals, j)
	}
}

// Close releases what the task holds; unfinished builds stay marked.
// Levels already queued for the collection are packed first.
func (task *Task) Close() error {
	if task.queue != nil {
		task.queue.Close()
		task.queue = nil
	}
	task.Abort()
	if task.catalog != nil {
		err := task.catalog.Close()
		task.catalog = nil
		return err
	}
	return nil
}

// progress wraps a pb bar that may be disabled.
type progress struct {
	bar  *pb.ProgressBar
	name string
}

func newProgress(name string, total int, enabled bool) *progress {
	p := &progress{name: name}
	if !enabled || total <= 0 {
		return p
	}
	p.bar = pb.New(total).Prefix(name + " ")
	p.bar.Output = os.Stderr
	p.bar.SetRefreshRate(time.Second)
	p.bar.Start()
	return p
}

func (p *progress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) Finish(ok bool) {
	if p.bar == nil {
		return
	}
	if ok {
		p.bar.FinishPrint(fmt.Sprintf("%s finished ~", p.name))
		return
	}
	p.bar.Finish()
}
