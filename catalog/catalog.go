/*
Package catalog records the members of a Deep Zoom collection in a sqlite
database kept next to the collection, so a collection can be grown over
several runs without losing the members added earlier.
*/
package catalog

import (
	"database/sql"
	"fmt"

	"deepzoom/dzc"

	_ "github.com/mattn/go-sqlite3"
)

type Catalog struct {
	db *sql.DB
}

func Open(file string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS member (id INTEGER PRIMARY KEY NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, source TEXT NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{
		db: db,
	}, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Next returns the id following the highest recorded member, or 0.
func (c *Catalog) Next() (int, error) {
	var next int
	if err := c.db.QueryRow("SELECT COALESCE(MAX(id) + 1, 0) FROM member").Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func put(db execer, m dzc.Member) error {
	_, err := db.Exec("INSERT OR REPLACE INTO member (id, width, height, source) VALUES (?, ?, ?, ?)", m.ID, m.Width, m.Height, m.Source)
	return err
}

// Put records m, replacing any member already stored under its id.
func (c *Catalog) Put(m dzc.Member) error {
	return put(c.db, m)
}

// Members lists every recorded member ordered by id.
func (c *Catalog) Members() ([]dzc.Member, error) {
	rows, err := c.db.Query("SELECT id, width, height, source FROM member ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []dzc.Member
	for rows.Next() {
		var m dzc.Member
		if err := rows.Scan(&m.ID, &m.Width, &m.Height, &m.Source); err != nil {
			return nil, err
		}
		m.Row, m.Col = dzc.Morton(uint32(m.ID))
		members = append(members, m)
	}
	return members, rows.Err()
}

// Merge records every member of manifest and returns it with the full
// member list and a NextID past every recorded member.
func (c *Catalog) Merge(manifest dzc.Manifest) (dzc.Manifest, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return manifest, err
	}
	for _, m := range manifest.Members {
		if err := put(tx, m); err != nil {
			tx.Rollback()
			return manifest, err
		}
	}
	if err := tx.Commit(); err != nil {
		return manifest, err
	}

	members, err := c.Members()
	if err != nil {
		return manifest, err
	}
	next, err := c.Next()
	if err != nil {
		return manifest, err
	}
	manifest.Members = members
	if next > manifest.NextID {
		manifest.NextID = next
	}
	return manifest, nil
}
