package upgrade

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/mmap"
)

// ReadFunc is called once per object. l is a transient one-item list with the
// cursor unset; it is freed as soon as the callback returns, so neither l nor
// its items may be retained. A non-nil error stops the read with
// ErrCallbackAborted.
type ReadFunc func(r *Reader, kind int32, l *infolist.InfoList) error

const readBufferSize = 64 * 1024

// Reader replays an upgrade file. It is not safe for concurrent use.
type Reader struct {
	path    string
	f       *os.File
	mapping []byte
	src     io.Reader
	size    int64

	pos     int64
	lastPos int64
	lastLen int
	scratch [8]byte

	fn        ReadFunc
	data      any
	reg       *infolist.Registry
	ownReg    bool
	signature string
	objects   int

	logger  *slog.Logger
	context context.Context
}

// Open opens the upgrade file at path for reading. On success the reader takes
// ownership of o.Data; on failure the caller keeps it.
func Open(path string, fn ReadFunc, o Options) (*Reader, error) {
	if fn == nil {
		panic("upgrade: nil ReadFunc")
	}
	o.fillDefaults()
	r := &Reader{
		path:      path,
		fn:        fn,
		data:      o.Data,
		reg:       o.Registry,
		signature: o.Signature,
		logger:    o.Logger,
		context:   o.Context,
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, r.fail(&Error{Context: "open", Kind: ErrIO, Err: err})
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, r.fail(&Error{Context: "stat", Kind: ErrIO, Err: err})
	}
	r.size = st.Size()

	if o.Mmap {
		b, err := mmap.Map(f, r.size, mmap.SequentialAccess)
		if err != nil {
			f.Close()
			return nil, r.fail(&Error{Context: "mmap", Kind: ErrIO, Err: err})
		}
		r.mapping = b
		r.src = bytes.NewReader(b)
	} else {
		r.src = bufio.NewReaderSize(f, readBufferSize)
	}
	r.f = f

	if r.reg == nil {
		r.reg = infolist.NewRegistry()
		r.ownReg = true
	}
	return r, nil
}

func (r *Reader) Path() string { return r.path }

// Data returns the value passed as Options.Data.
func (r *Reader) Data() any { return r.data }

// Objects returns the number of objects delivered to the callback so far.
func (r *Reader) Objects() int { return r.objects }

// Run validates the signature, then reads objects until a clean end of file,
// invoking the callback for each. Every failure is logged once and returned
// as *Error.
func (r *Reader) Run() error {
	if r.f == nil {
		panic("upgrade: Run after Close")
	}

	sig, err := r.readString("signature", "")
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind != ErrIO {
			e.Context = "signature not found"
			e.Err = e.Kind
			e.Kind = ErrSignatureMismatch
		}
		return r.fail(err)
	}
	if sig != r.signature {
		return r.fail(r.errorf(ErrSignatureMismatch, "bad signature", "upgrade file format may have changed since last version", nil))
	}

	for {
		done, err := r.readObject()
		if err != nil {
			return r.fail(err)
		}
		if done {
			break
		}
	}

	r.logger.LogAttrs(r.context, slog.LevelDebug, "upgrade: read",
		slog.String("file", r.path),
		slog.Int("objects", r.objects),
		slog.Int64("size", r.pos))
	return nil
}

func (r *Reader) readObject() (done bool, err error) {
	// a clean end of file is only allowed between objects
	n, err := io.ReadFull(r.src, r.scratch[:4])
	if n == 0 && err == io.EOF {
		return true, nil
	}
	r.advance(n, 4)
	if err != nil {
		return false, r.errorf(ioKind(err), "object type", "", ioCause(err))
	}
	rec := int32(binary.LittleEndian.Uint32(r.scratch[:4]))
	if rec != RecordObjectStart {
		return false, r.errorf(ErrUnexpectedRecordType, "object type", "got "+recordName(rec)+", wanted object start", nil)
	}

	kind, err := r.readInt32("object id", "")
	if err != nil {
		return false, err
	}

	l, err := r.reg.New(infolist.NoOwner)
	if err != nil {
		return false, r.errorf(nil, "infolist creation", "", err)
	}
	defer l.Free()
	item := l.NewItem()

	for {
		rec, err := r.readInt32("object type", "")
		if err != nil {
			return false, err
		}
		if rec == RecordObjectEnd {
			break
		}
		if rec != RecordObjectVar {
			return false, r.errorf(ErrUnexpectedRecordType, "object type", "got "+recordName(rec)+", wanted object var or object end", nil)
		}

		name, err := r.readString("variable name", "")
		if err != nil {
			return false, err
		}
		typ, err := r.readInt32("variable type", name)
		if err != nil {
			return false, err
		}
		val, ok, err := r.readValue(typ, name)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := item.NewVar(name, val); err != nil {
			return false, r.errorf(nil, "variable", strconv.Quote(name), err)
		}
	}

	if err := r.fn(r, kind, l); err != nil {
		return false, r.errorf(ErrCallbackAborted, "callback", fmt.Sprintf("object id %d", kind), err)
	}
	r.objects++
	return false, nil
}

// readValue reads a value of the given type. A pointer type carries no value
// and yields ok == false.
func (r *Reader) readValue(typ int32, name string) (val infolist.Value, ok bool, err error) {
	switch typ {
	case TypeInteger:
		v, err := r.readInt32("variable", "integer "+strconv.Quote(name))
		return infolist.IntegerValue(v), err == nil, err
	case TypeString:
		v, err := r.readString("variable", "string "+strconv.Quote(name))
		return infolist.StringValue(v), err == nil, err
	case TypePointer:
		return infolist.Value{}, false, nil
	case TypeBuffer:
		v, err := r.readBuffer("variable", "buffer "+strconv.Quote(name))
		return infolist.BufferValue(v), err == nil, err
	case TypeTime:
		v, err := r.readInt64("variable", "time "+strconv.Quote(name))
		return infolist.UnixValue(v), err == nil, err
	default:
		return infolist.Value{}, false, r.errorf(ErrUnexpectedRecordType, "variable type", fmt.Sprintf("unknown type %d for %q", typ, name), nil)
	}
}

func (r *Reader) readFull(b []byte, what, detail string) error {
	n, err := io.ReadFull(r.src, b)
	r.advance(n, len(b))
	if err != nil {
		return r.errorf(ioKind(err), what, detail, ioCause(err))
	}
	return nil
}

func (r *Reader) advance(n, want int) {
	r.lastPos = r.pos
	r.lastLen = want
	r.pos += int64(n)
}

func (r *Reader) readInt32(what, detail string) (int32, error) {
	b := r.scratch[:4]
	if err := r.readFull(b, what, detail); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) readInt64(what, detail string) (int64, error) {
	b := r.scratch[:8]
	if err := r.readFull(b, what, detail); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) readLength(what, detail string) (int, error) {
	n, err := r.readInt32(what, detail)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, r.errorf(ErrInvalidLength, what, fmt.Sprintf("%s: length %d", detail, n), nil)
	}
	if int64(n) > r.size-r.pos {
		return 0, r.errorf(ErrUnexpectedEOF, what, fmt.Sprintf("%s: length %d exceeds remaining %d bytes", detail, n, r.size-r.pos), nil)
	}
	return int(n), nil
}

func (r *Reader) readBuffer(what, detail string) ([]byte, error) {
	n, err := r.readLength(what, detail)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if err := r.readFull(b, what, detail); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) readString(what, detail string) (string, error) {
	b, err := r.readBuffer(what, detail)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) errorf(kind error, what, detail string, err error) *Error {
	return &Error{
		Context: what,
		Detail:  detail,
		Pos:     r.lastPos,
		Len:     r.lastLen,
		Kind:    kind,
		Err:     err,
	}
}

func (r *Reader) fail(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: ErrIO, Err: err}
		err = e
	}
	e.Path = r.path
	e.Op = OpRead
	r.logger.LogAttrs(r.context, slog.LevelError, "upgrade: failed", e.logAttrs()...)
	return err
}

// Close releases the file, the mapping, the private registry and the
// callback data.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	var err error
	if r.mapping != nil {
		err = mmap.Unmap(r.mapping)
		r.mapping = nil
	}
	if e := r.f.Close(); e != nil && err == nil {
		err = e
	}
	r.f = nil
	r.src = nil

	if c, ok := r.data.(io.Closer); ok {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	r.data = nil

	if r.ownReg {
		r.reg.Close()
	}
	return err
}

// ioCause drops EOF markers, which are already reflected by ErrUnexpectedEOF.
func ioCause(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}
