// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package state provides a persistent cache of encoded animation bundles
// keyed by the semantic sum of the configuration they were built from.
package state

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kortschak/macwall/internal/config"

	// For sql.DB registration.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a bundle is not held by the cache.
var ErrNotFound = errors.New("item not found")

// DB is a persistent bundle cache.
type DB struct {
	mu    sync.Mutex
	store *sql.DB
	now   func() time.Time
	log   *slog.Logger
}

// Schema is the DB schema. The sum column holds the hex encoding of a
// config.Sum and created holds the Unix nanosecond time of the last put.
const Schema = `
create table if not exists bundle(
	sum     TEXT    NOT NULL PRIMARY KEY,
	data    BLOB    NOT NULL,
	created INTEGER NOT NULL
);
`

const (
	upsert = `
insert into bundle values(?, ?, ?)
  on conflict do update set data=?, created=?;
`

	get = `
select data from bundle where sum is ?;
`

	delet = `
delete from bundle where sum is ?;
`

	prune = `
delete from bundle where sum not in (
  select sum from bundle order by created desc, rowid desc limit ?
);
`

	entries = `
select sum, length(data), created from bundle order by created desc, rowid desc;
`
)

// Open opens a DB, creating the tables if required.
// See https://pkg.go.dev/modernc.org/sqlite#Driver.Open for name handling
// details.
func Open(name string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{store: db, now: time.Now, log: log.With(slog.String("component", "cache"))}, nil
}

type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// Get returns the bundle stored for sum. Get returns ErrNotFound if no
// bundle is held.
func (db *DB) Get(sum config.Sum) (data []byte, err error) {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "get", slog.String("sum", sum.String()))
	db.mu.Lock()
	data, err = db.get(db.store, sum)
	db.mu.Unlock()
	if err != nil && err != ErrNotFound {
		db.log.LogAttrs(ctx, slog.LevelError, "get", slog.String("sum", sum.String()), slog.Any("error", err))
	}
	return data, err
}

func (*DB) get(db querier, sum config.Sum) ([]byte, error) {
	rows, err := db.Query(get, sum.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		err = rows.Err()
		if err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var data []byte
	err = rows.Scan(&data)
	if err != nil {
		return nil, err
	}
	if rows.Next() {
		return data, errors.New("unexpected item")
	}
	return data, rows.Err()
}

// Put stores data as the bundle for sum, returning the previously held
// bundle and whether the stored data changed. The entry's creation time
// is updated even when the data is unchanged.
func (db *DB) Put(sum config.Sum, data []byte) (old []byte, written bool, err error) {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "put", slog.String("sum", sum.String()), slog.Int("size", len(data)))
	db.mu.Lock()
	defer func() {
		db.mu.Unlock()
		if err != nil {
			db.log.LogAttrs(ctx, slog.LevelError, "put", slog.String("sum", sum.String()), slog.Any("error", err))
		}
	}()
	tx, err := db.store.Begin()
	if err != nil {
		return nil, false, err
	}
	old, err = db.get(tx, sum)
	if err != nil && err != ErrNotFound {
		return nil, false, errors.Join(err, tx.Rollback())
	}
	created := db.now().UnixNano()
	_, err = tx.Exec(upsert, sum.String(), data, created, data, created)
	if err != nil {
		return nil, false, errors.Join(err, tx.Rollback())
	}
	return old, !bytes.Equal(old, data), tx.Commit()
}

// Delete removes the bundle for sum.
func (db *DB) Delete(sum config.Sum) error {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "delete", slog.String("sum", sum.String()))
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.store.Exec(delet, sum.String())
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "delete", slog.String("sum", sum.String()), slog.Any("error", err))
	}
	return err
}

// Prune removes all but the keep most recently put bundles, returning
// the number of bundles removed.
func (db *DB) Prune(keep int) (int, error) {
	ctx := context.Background()
	db.log.LogAttrs(ctx, slog.LevelDebug, "prune", slog.Int("keep", keep))
	db.mu.Lock()
	defer db.mu.Unlock()
	res, err := db.store.Exec(prune, max(keep, 0))
	if err != nil {
		db.log.LogAttrs(ctx, slog.LevelError, "prune", slog.Int("keep", keep), slog.Any("error", err))
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Entry is a summary of a cached bundle.
type Entry struct {
	Sum     config.Sum `json:"sum"`
	Size    int        `json:"size"`
	Created time.Time  `json:"created"`
}

// Entries returns a summary of the cached bundles, most recent first.
func (db *DB) Entries() ([]Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rows, err := db.store.Query(entries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		list    []Entry
		sum     string
		size    int
		created int64
	)
	for rows.Next() {
		err = rows.Scan(&sum, &size, &created)
		if err != nil {
			return nil, err
		}
		s, err := config.ParseSum(sum)
		if err != nil {
			return nil, err
		}
		list = append(list, Entry{Sum: s, Size: size, Created: time.Unix(0, created)})
	}
	return list, rows.Err()
}

// Close closes the database.
func (db *DB) Close() error {
	return db.store.Close()
}
