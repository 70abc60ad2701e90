package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Save writes the named upgrade file in dataDir, letting fn emit the objects.
// The file is closed even when fn fails; fn's error wins over a close error.
func Save(dataDir, name string, o Options, fn func(w *Writer) error) error {
	o.fillDefaults()
	w, err := Create(FileName(dataDir, name), o)
	if err != nil {
		return err
	}
	err = fn(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			o.Logger.LogAttrs(o.Context, slog.LevelError, "upgrade: save aborted", slog.String("file", w.Path()), slog.Any("err", err))
		}
		return err
	}
	return nil
}

// Load replays the named upgrade file in dataDir through fn. A missing file
// yields an error matching both ErrIO and fs.ErrNotExist.
func Load(dataDir, name string, fn ReadFunc, o Options) error {
	r, err := Open(FileName(dataDir, name), fn, o)
	if err != nil {
		return err
	}
	err = r.Run()
	if cerr := r.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("upgrade: close %q: %w", r.Path(), cerr)
	}
	return err
}

// RemoveFiles deletes every regular *.upgrade file in dataDir, returning the
// names of the deleted files. It keeps going after a failed removal and
// reports all failures together.
func RemoveFiles(ctx context.Context, dataDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ents, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, ent := range ents {
		if !ent.Type().IsRegular() || !strings.HasSuffix(ent.Name(), FileSuffix) {
			continue
		}
		fn := filepath.Join(dataDir, ent.Name())
		if err := os.Remove(fn); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "upgrade: cannot remove file", slog.String("file", fn), slog.Any("err", err))
			errs = append(errs, err)
			continue
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "upgrade: removed file", slog.String("file", fn))
		removed = append(removed, ent.Name())
	}
	return removed, errors.Join(errs...)
}
