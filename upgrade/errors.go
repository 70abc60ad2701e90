package upgrade

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

var (
	ErrIO                   = fmt.Errorf("I/O error")
	ErrSignatureMismatch    = fmt.Errorf("signature mismatch")
	ErrUnexpectedRecordType = fmt.Errorf("unexpected record type")
	ErrUnexpectedEOF        = fmt.Errorf("unexpected end of file")
	ErrCallbackAborted      = fmt.Errorf("callback aborted")
	ErrInvalidLength        = fmt.Errorf("invalid length")
	ErrValueTooLarge        = fmt.Errorf("value too large")
)

type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Error is returned by every failing Writer and Reader operation. Kind is one
// of the Err* sentinels above (or an infolist error), and Err is the
// underlying cause, if any; both are matched by errors.Is.
type Error struct {
	Path    string
	Op      Op
	Context string // what was being read or written, e.g. "variable name"
	Detail  string

	// Pos and Len describe the last primitive read before the failure.
	Pos int64
	Len int

	Kind error
	Err  error
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("upgrade: ")
	buf.WriteString(string(e.Op))
	buf.WriteString(" ")
	buf.WriteString(strconv.Quote(e.Path))
	if e.Context != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Context)
	}
	if e.Detail != "" {
		buf.WriteString(" (")
		buf.WriteString(e.Detail)
		buf.WriteString(")")
	}
	if e.Kind != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	if e.Op == OpRead {
		fmt.Fprintf(&buf, " [last read: position %d, length %d]", e.Pos, e.Len)
	}
	return buf.String()
}

func (e *Error) logAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("file", e.Path),
		slog.String("op", string(e.Op)),
		slog.String("ctx", e.Context),
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	if e.Op == OpRead {
		attrs = append(attrs, slog.Int64("pos", e.Pos), slog.Int("len", e.Len))
	}
	if e.Kind != nil {
		attrs = append(attrs, slog.String("kind", e.Kind.Error()))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.Any("err", e.Err))
	}
	return attrs
}

func ioKind(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return ErrIO
}
