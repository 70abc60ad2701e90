package upgrade

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/mmap"
)

// Writer produces an upgrade file. It is not safe for concurrent use.
//
// The first failure is sticky: every later WriteObject returns the same error
// without touching the file.
type Writer struct {
	path    string
	f       *os.File
	buf     []byte
	size    int64
	objects int
	hash    xxhash.Digest
	err     error

	sync    bool
	logger  *slog.Logger
	context context.Context
}

// Create creates (or truncates) the upgrade file at path with owner-only
// permissions and writes the signature.
func Create(path string, o Options) (*Writer, error) {
	o.fillDefaults()
	w := &Writer{
		path:    path,
		sync:    o.Sync,
		logger:  o.Logger,
		context: o.Context,
	}
	w.hash.Reset()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, w.fail(&Error{Context: "create", Kind: ErrIO, Err: err})
	}
	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	// O_CREATE leaves the mode of an existing file alone
	if err := f.Chmod(0o600); err != nil {
		return nil, w.fail(&Error{Context: "chmod", Kind: ErrIO, Err: err})
	}
	w.f = f

	w.buf, err = appendString(w.buf[:0], o.Signature)
	if err != nil {
		return nil, w.fail(&Error{Context: "signature", Kind: err})
	}
	if err := w.flush("signature", ""); err != nil {
		return nil, err
	}

	w.logger.LogAttrs(w.context, slog.LevelDebug, "upgrade: writing", slog.String("file", path))
	ok = true
	return w, nil
}

func (w *Writer) Path() string { return w.path }

// Objects returns the number of objects written so far.
func (w *Writer) Objects() int { return w.objects }

// Size returns the number of bytes written so far, signature included.
func (w *Writer) Size() int64 { return w.size }

// Sum64 returns the xxhash of everything written so far.
func (w *Writer) Sum64() uint64 { return w.hash.Sum64() }

// Err returns the sticky error, if any.
func (w *Writer) Err() error { return w.err }

// WriteObject appends one object per item of l, all tagged with kind. Pointer
// variables are skipped. The list's cursor is reset before and left past the
// last item after.
func (w *Writer) WriteObject(kind int32, l *infolist.InfoList) error {
	if w.err != nil {
		return w.err
	}
	if w.f == nil {
		panic("upgrade: WriteObject after Close")
	}

	l.ResetCursor()
	for it := l.Next(); it != nil; it = l.Next() {
		b := appendInt32(w.buf[:0], RecordObjectStart)
		b = appendInt32(b, kind)
		for v := range it.All() {
			if v.Kind() == infolist.Pointer {
				continue
			}
			var err error
			b, err = appendVar(b, v)
			if err != nil {
				w.buf = b[:0]
				return w.fail(&Error{Context: "variable", Detail: v.Kind().String() + " " + strconv.Quote(v.Name), Kind: err})
			}
		}
		b = appendInt32(b, RecordObjectEnd)
		w.buf = b

		if err := w.flush("object", fmt.Sprintf("kind %d", kind)); err != nil {
			return err
		}
		w.objects++
	}
	return nil
}

func (w *Writer) flush(what, detail string) error {
	n, err := w.f.Write(w.buf)
	w.hash.Write(w.buf[:n])
	w.size += int64(n)
	w.buf = w.buf[:0]
	if err != nil {
		return w.fail(&Error{Context: what, Detail: detail, Kind: ErrIO, Err: err})
	}
	return nil
}

// Close syncs (if requested) and closes the file. A file that failed mid-way
// is left on disk truncated.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil

	var err error
	if w.sync && w.err == nil {
		if e := mmap.Fdatasync(f); e != nil {
			err = w.fail(&Error{Context: "sync", Kind: ErrIO, Err: e})
		}
	}
	if e := f.Close(); e != nil && err == nil {
		err = w.fail(&Error{Context: "close", Kind: ErrIO, Err: e})
	}
	if err == nil && w.err == nil {
		w.logger.LogAttrs(w.context, slog.LevelDebug, "upgrade: written",
			slog.String("file", w.path),
			slog.Int("objects", w.objects),
			slog.Int64("size", w.size),
			slog.String("xxhash", fmt.Sprintf("%016x", w.hash.Sum64())))
	}
	return err
}

func (w *Writer) fail(e *Error) error {
	e.Path = w.path
	e.Op = OpWrite
	if w.err == nil {
		w.err = e
	}
	w.logger.LogAttrs(w.context, slog.LevelError, "upgrade: failed", e.logAttrs()...)
	return e
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

func appendInt32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func appendInt64(b []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(b, uint64(v))
}

func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > maxChunkLen {
		return b, ErrValueTooLarge
	}
	b = appendInt32(b, int32(len(s)))
	return append(b, s...), nil
}

func appendBuffer(b []byte, data []byte) ([]byte, error) {
	if len(data) > maxChunkLen {
		return b, ErrValueTooLarge
	}
	b = appendInt32(b, int32(len(data)))
	return append(b, data...), nil
}

func appendVar(b []byte, v infolist.Var) ([]byte, error) {
	b = appendInt32(b, RecordObjectVar)
	b, err := appendString(b, v.Name)
	if err != nil {
		return b, err
	}
	b = appendInt32(b, typeOfKind(v.Kind()))
	switch v.Kind() {
	case infolist.Integer:
		b = appendInt32(b, v.Value.AsInteger())
	case infolist.String:
		b, err = appendString(b, v.Value.AsString())
	case infolist.Buffer:
		b, err = appendBuffer(b, v.Value.AsBuffer())
	case infolist.Time:
		b = appendInt64(b, v.Value.AsUnix())
	}
	return b, err
}
