// Package upgradetest helps testing code that reads and writes upgrade files.
package upgradetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/upgrade"
)

// Logger returns a debug-level logger that writes into t.Log.
func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
}

// Options returns upgrade options logging into t.
func Options(t testing.TB) upgrade.Options {
	return upgrade.Options{Logger: Logger(t)}
}

// Object is a recorded callback invocation.
type Object struct {
	Kind int32
	Vars []infolist.Var
}

func (o Object) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d{", o.Kind)
	for i, v := range o.Vars {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s:%v=%v", v.Name, v.Kind(), v.Value)
	}
	buf.WriteString("}")
	return buf.String()
}

// Recorder collects every object passed to its Read callback. If FailAt is
// positive, the callback returns Err for the FailAt-th object (1-based).
type Recorder struct {
	Objects []Object
	FailAt  int
	Err     error

	calls int
}

func (rec *Recorder) Read(r *upgrade.Reader, kind int32, l *infolist.InfoList) error {
	rec.calls++
	if rec.FailAt > 0 && rec.calls == rec.FailAt {
		return rec.Err
	}
	for _, it := range l.Items() {
		rec.Objects = append(rec.Objects, Object{Kind: kind, Vars: it.Vars()})
	}
	return nil
}

// Calls returns the number of callback invocations, including a failing one.
func (rec *Recorder) Calls() int {
	return rec.calls
}

// Put writes an expanded byte spec into dir/name.
func Put(t testing.TB, dir, name string, specs ...string) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, Expand(specs...), 0o600); err != nil {
		t.Fatalf("when writing %v: %v", name, err)
	}
	return fn
}

// Eq compares the file's content to an expanded byte spec.
func Eq(t testing.TB, fn string, expected ...string) bool {
	t.Helper()
	b, err := os.ReadFile(fn)
	if err != nil {
		t.Fatalf("when reading %v: %v", fn, err)
	}
	return BytesEq(t, b, Expand(expected...))
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

// Expand turns a whitespace-separated byte spec into bytes. Elements:
//
//	SIG        the default signature as a string chunk
//	START VAR END  record tags
//	#-12       int32, little-endian
//	@99        int64, little-endian
//	$text      string chunk (length + bytes); a lone $ is an empty string
//	'text      raw bytes
//	0a_ff      hex bytes
//	x/comment  everything after a slash is ignored
//	x*3        repeat
func Expand(specs ...string) []byte {
	var b []byte
	for _, spec := range specs {
		for _, elem := range strings.Fields(spec) {
			base, _, _ := strings.Cut(elem, "/") // comment
			if base == "" {
				continue
			}

			base, repStr, _ := strings.Cut(base, "*")

			rep := 1
			if repStr != "" {
				var err error
				rep, err = strconv.Atoi(repStr)
				if err != nil {
					panic(fmt.Sprintf("invalid repeat count %q in element %q", repStr, elem))
				}
			}

			chunk, err := appendElem(nil, base)
			if err != nil {
				panic(fmt.Errorf("%w in element %q", err, elem))
			}
			for range rep {
				b = append(b, chunk...)
			}
		}
	}
	return b
}

func appendElem(data []byte, elem string) ([]byte, error) {
	switch elem {
	case "SIG":
		return appendChunk(data, upgrade.Signature), nil
	case "START":
		return binary.LittleEndian.AppendUint32(data, uint32(upgrade.RecordObjectStart)), nil
	case "VAR":
		return binary.LittleEndian.AppendUint32(data, uint32(upgrade.RecordObjectVar)), nil
	case "END":
		return binary.LittleEndian.AppendUint32(data, uint32(upgrade.RecordObjectEnd)), nil
	}

	if decimal, ok := strings.CutPrefix(elem, "#"); ok {
		v, err := strconv.ParseInt(decimal, 10, 32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(data, uint32(int32(v))), nil
	} else if decimal, ok := strings.CutPrefix(elem, "@"); ok {
		v, err := strconv.ParseInt(decimal, 10, 64)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(data, uint64(v)), nil
	} else if text, ok := strings.CutPrefix(elem, "$"); ok {
		return appendChunk(data, text), nil
	} else if alpha, ok := strings.CutPrefix(elem, "'"); ok {
		return append(data, alpha...), nil
	}
	return appendHexDecoding(data, elem)
}

func appendChunk(data []byte, s string) []byte {
	data = binary.LittleEndian.AppendUint32(data, uint32(len(s)))
	return append(data, s...)
}

func appendHexDecoding(data []byte, hex string) ([]byte, error) {
	const none byte = 0xFF

	prev := none
	for _, b := range []byte(hex) {
		var half byte
		switch b {
		case '_':
			if prev != none {
				data = append(data, prev)
				prev = none
			}
			continue
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			half = b - '0'
		case 'a', 'b', 'c', 'd', 'e', 'f':
			half = b - 'a' + 10
		case 'A', 'B', 'C', 'D', 'E', 'F':
			half = b - 'A' + 10
		default:
			return nil, fmt.Errorf("invalid char '%c'", b)
		}
		if prev == none {
			prev = half
		} else {
			data = append(data, prev<<4|half)
			prev = none
		}
	}
	if prev != none {
		data = append(data, prev)
	}
	return data, nil
}

// HexDump formats b as a classic hex dump, marking the byte at highlightOff
// (if non-negative) with '>'.
func HexDump(b []byte, highlightOff int) string {
	var buf strings.Builder
	var off int
	n := len(b)
	for {
		fmt.Fprintf(&buf, "%08x", off)
		if off >= n {
			buf.WriteByte('\n')
			break
		}
		buf.WriteByte(' ')
		for i := range 8 {
			if off+i >= n {
				buf.WriteString("   ")
			} else {
				if highlightOff >= 0 && off+i == highlightOff {
					buf.WriteByte('>')
				} else {
					buf.WriteByte(' ')
				}
				fmt.Fprintf(&buf, "%02x", b[off+i])
			}
		}
		buf.WriteString("  |")
		for i := range 8 {
			if off+i < n {
				v := b[off+i]
				if v >= 32 && v <= 126 {
					buf.WriteByte(v)
				} else {
					buf.WriteByte('.')
				}
			}
		}
		off += 8
		buf.WriteString("|\n")
		if off >= n {
			break
		}
	}
	return buf.String()
}

func BytesEq(t testing.TB, a, e []byte) bool {
	if !bytes.Equal(a, e) {
		an, en := len(a), len(e)
		off := min(an, en)
		for i := range min(an, en) {
			if a[i] != e[i] {
				off = i
				break
			}
		}

		t.Helper()
		t.Errorf("** got:\n%v\nwanted:\n%v\nfirst difference offset: 0x%x (%d)", HexDump(a, off), HexDump(e, off), off, off)
		return false
	}
	return true
}
