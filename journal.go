package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"deepzoom/pyramid"

	"github.com/paulmach/orb/maptile"
	"github.com/teris-io/shortid"
)

const journalHeader = "# build "

// Journal marks an output tree as being built. It lists the build id and
// every tile written so far; it is removed only once the descriptor of a
// finished build is in place, so a leftover journal means the tree next to
// it is incomplete.
type Journal struct {
	ID       string
	path     string
	file     *os.File
	saveChan chan maptile.Tile
	done     chan struct{}
	mu       sync.Mutex
	isClose  bool

	// writeErr is the first failed write; set by start only.
	writeErr error
}

// OpenJournal starts a new journal at path, replacing any stale one.
func OpenJournal(path string, buf int) (*Journal, error) {
	id, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("build id: %v", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %v: %w", path, err, pyramid.ErrIO)
	}
	if _, err := file.WriteString(journalHeader + id + "\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("write journal %s: %v: %w", path, err, pyramid.ErrIO)
	}

	j := &Journal{
		ID:       id,
		path:     path,
		file:     file,
		saveChan: make(chan maptile.Tile, buf),
		done:     make(chan struct{}),
	}
	go j.start()
	return j, nil
}

// ReadJournal returns the build id and the written tiles of a journal left
// behind by an unfinished build.
func ReadJournal(path string) (string, map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	var id string
	res := make(map[string]struct{})
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, journalHeader) {
			id = strings.TrimPrefix(line, journalHeader)
			continue
		}
		if line != "" {
			res[line] = struct{}{}
		}
	}
	return id, res, sc.Err()
}

// journalKey formats a written tile as level-col-row.
func journalKey(tile maptile.Tile) string {
	return fmt.Sprintf("%d-%d-%d", tile.Z, tile.X, tile.Y)
}

// Record notes that the tile at level, col, row was written.
func (j *Journal) Record(level, col, row int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isClose {
		return
	}
	j.saveChan <- maptile.New(uint32(col), uint32(row), maptile.Zoom(level))
}

func (j *Journal) start() {
	defer close(j.done)
	for tile := range j.saveChan {
		if j.writeErr != nil {
			continue
		}
		if _, err := j.file.WriteString(journalKey(tile) + "\n"); err != nil {
			j.writeErr = err
		}
	}
}

// Close flushes the journal and leaves it on disk.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.isClose {
		j.mu.Unlock()
		return nil
	}
	j.isClose = true
	close(j.saveChan)
	j.mu.Unlock()

	<-j.done
	err := j.file.Close()
	if j.writeErr != nil {
		return fmt.Errorf("write journal %s: %v: %w", j.path, j.writeErr, pyramid.ErrIO)
	}
	return err
}

// Commit closes the journal and removes it, declaring the build complete.
func (j *Journal) Commit() error {
	if err := j.Close(); err != nil {
		return fmt.Errorf("close journal %s: %v: %w", j.path, err, pyramid.ErrIO)
	}
	return removeFile(j.path)
}
