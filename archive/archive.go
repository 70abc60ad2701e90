// Package archive keeps copies of consumed upgrade files in a bbolt database,
// so that a failed restore can be inspected after the live file is gone.
package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/infolist/upgrade"
)

var (
	filesBucket = []byte("files")
	metaBucket  = []byte("meta")
)

var ErrNotFound = errors.New("archive: entry not found")

type Options struct {
	// Keep is the number of newest entries retained; 0 keeps everything.
	Keep int

	// IsTesting trades durability for speed.
	IsTesting bool

	Context context.Context // only used for logging
	Logger  *slog.Logger
	Now     func() time.Time
}

// Status describes how reading an archived file went.
type Status struct {
	Objects int
	Err     error
}

type Entry struct {
	ID         uint64    `msgpack:"id"`
	Name       string    `msgpack:"name"`
	Size       int64     `msgpack:"size"`
	Digest     uint64    `msgpack:"digest"`
	ArchivedAt time.Time `msgpack:"at"`
	Objects    int       `msgpack:"objects"`
	Err        string    `msgpack:"err,omitempty"`
}

func (e Entry) String() string {
	s := fmt.Sprintf("#%d %s (%d bytes, %d objects, xxhash %016x, %s)", e.ID, e.Name, e.Size, e.Objects, e.Digest, e.ArchivedAt.UTC().Format(time.RFC3339))
	if e.Err != "" {
		s += ": " + e.Err
	}
	return s
}

type Archive struct {
	bdb     *bbolt.DB
	keep    int
	now     func() time.Time
	logger  *slog.Logger
	context context.Context
}

func Open(path string, o Options) (*Archive, error) {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if o.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	bdb, err := bbolt.Open(path, 0o600, bopt)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}

	return &Archive{
		bdb:     bdb,
		keep:    o.Keep,
		now:     o.Now,
		logger:  o.Logger,
		context: o.Context,
	}, nil
}

func (a *Archive) Close() error {
	return a.bdb.Close()
}

// Store copies the file at filePath into the archive, then prunes old
// entries down to Options.Keep.
func (a *Archive) Store(filePath string, st Status) (Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Entry{}, fmt.Errorf("archive: %w", err)
	}
	e := Entry{
		Name:       filepath.Base(filePath),
		Size:       int64(len(data)),
		Digest:     xxhash.Sum64(data),
		ArchivedAt: a.now().UTC(),
		Objects:    st.Objects,
	}
	if st.Err != nil {
		e.Err = st.Err.Error()
	}

	var pruned int
	err = a.bdb.Update(func(tx *bbolt.Tx) error {
		files, meta := tx.Bucket(filesBucket), tx.Bucket(metaBucket)
		id, err := files.NextSequence()
		if err != nil {
			return err
		}
		e.ID = id
		key := idKey(id)

		raw, err := msgpack.Marshal(&e)
		if err != nil {
			return err
		}
		if err := files.Put(key, data); err != nil {
			return err
		}
		if err := meta.Put(key, raw); err != nil {
			return err
		}
		pruned, err = a.prune(tx)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("archive: %w", err)
	}

	a.logger.LogAttrs(a.context, slog.LevelInfo, "archive: stored",
		slog.Uint64("id", e.ID),
		slog.String("file", e.Name),
		slog.Int64("size", e.Size),
		slog.Int("pruned", pruned))
	return e, nil
}

// StoreFiles archives every upgrade file in dataDir, in name order.
func (a *Archive) StoreFiles(dataDir string, st Status) ([]Entry, error) {
	ents, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	var result []Entry
	for _, ent := range ents {
		if !ent.Type().IsRegular() || !strings.HasSuffix(ent.Name(), upgrade.FileSuffix) {
			continue
		}
		e, err := a.Store(filepath.Join(dataDir, ent.Name()), st)
		if err != nil {
			return result, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (a *Archive) prune(tx *bbolt.Tx) (int, error) {
	if a.keep <= 0 {
		return 0, nil
	}
	files, meta := tx.Bucket(filesBucket), tx.Bucket(metaBucket)

	// Stats only sees committed pages, so count with a cursor
	var keys [][]byte
	c := meta.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, slices.Clone(k))
	}
	if len(keys) <= a.keep {
		return 0, nil
	}
	keys = keys[:len(keys)-a.keep]
	for _, k := range keys {
		if err := files.Delete(k); err != nil {
			return 0, err
		}
		if err := meta.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// Entries returns all entries, oldest first.
func (a *Archive) Entries() ([]Entry, error) {
	var result []Entry
	err := a.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("entry %x: %w", k, err)
			}
			result = append(result, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return result, nil
}

// Data returns a copy of the archived file content.
func (a *Archive) Data(id uint64) ([]byte, error) {
	var data []byte
	err := a.bdb.View(func(tx *bbolt.Tx) error {
		key := idKey(id)
		k, v := tx.Bucket(filesBucket).Cursor().Seek(key)
		if !bytes.Equal(k, key) {
			return ErrNotFound
		}
		data = slices.Clone(v)
		if data == nil {
			data = []byte{}
		}
		return nil
	})
	return data, err
}

func idKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}
