// Package upgrade implements “upgrade files”: binary dumps of infolists that
// let a process save its live state right before replacing its own executable,
// and rebuild that state in the new process.
//
// Intended use:
//
//  1. At shutdown, every component builds infolists describing its objects
//     and writes them with Writer.WriteObject, tagging each with an object
//     kind of its own choosing.
//
//  2. At startup, Reader.Run replays the file, calling back once per object
//     with the kind and a one-item infolist holding the saved variables.
//
// The format carries no parent/child links. A component that writes a parent
// followed by its children must keep that order, and its callback has to
// remember the “current parent” between calls.
//
// Writes are not atomic: a failure mid-way leaves a truncated file behind,
// which the reader will reject with ErrUnexpectedEOF.
//
// # File format
//
// All integers are little-endian and fixed-width.
//
//   - file = string(signature) object*
//   - object = START:32 kind:32 (VAR:32 string(name) type:32 value)* END:32
//   - string = len:32 bytes[len]
//   - value = int:32 | string | buffer | time:64
//   - buffer = len:32 bytes[len]
//
// Record tags are START=0, VAR=1, END=2. Variable types are integer=0,
// string=1, pointer=2 (never written), buffer=3, time=4 (Unix seconds).
//
// The reader is stricter than the format: an object that repeats a variable
// name, or has an empty one, fails the whole read with infolist.ErrInvalidName.
// Writer never produces such objects.
package upgrade

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/andreyvit/infolist"
)

// Signature starts every upgrade file. Change it whenever the format changes.
const Signature = "===== Upgrade file v3 - binary, little-endian, do not edit! ====="

// FileSuffix is the extension of upgrade files inside the data directory.
const FileSuffix = ".upgrade"

// Record tags.
const (
	RecordObjectStart int32 = 0
	RecordObjectVar   int32 = 1
	RecordObjectEnd   int32 = 2
)

// Variable types.
const (
	TypeInteger int32 = 0
	TypeString  int32 = 1
	TypePointer int32 = 2
	TypeBuffer  int32 = 3
	TypeTime    int32 = 4
)

const maxChunkLen = 1<<31 - 1

type Options struct {
	Context context.Context // only used for logging
	Logger  *slog.Logger

	// Signature overrides the default Signature. Mostly useful in tests.
	Signature string

	// Sync makes Writer.Close fdatasync the file.
	Sync bool

	// Mmap makes the reader map the file instead of using buffered reads.
	Mmap bool

	// Registry receives the transient lists created by the reader. A private
	// registry is used when nil.
	Registry *infolist.Registry

	// Data is handed to the read callback via Reader.Data. The reader owns
	// it: if it implements io.Closer, Reader.Close closes it.
	Data any
}

func (o *Options) fillDefaults() {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Signature == "" {
		o.Signature = Signature
	}
}

// FileName returns the path of the named upgrade file in dataDir.
func FileName(dataDir, name string) string {
	return filepath.Join(dataDir, name+FileSuffix)
}

func typeOfKind(k infolist.Kind) int32 {
	switch k {
	case infolist.Integer:
		return TypeInteger
	case infolist.String:
		return TypeString
	case infolist.Pointer:
		return TypePointer
	case infolist.Buffer:
		return TypeBuffer
	case infolist.Time:
		return TypeTime
	default:
		panic("upgrade: invalid kind " + k.String())
	}
}

func recordName(rec int32) string {
	switch rec {
	case RecordObjectStart:
		return "object start"
	case RecordObjectVar:
		return "object var"
	case RecordObjectEnd:
		return "object end"
	default:
		return "record " + strconv.Itoa(int(rec))
	}
}
