package infolist

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidName       = errors.New("invalid variable name")
	ErrAllocationFailure = errors.New("allocation failure")
)

// VarError describes a variable that could not be added to an item.
type VarError struct {
	Name string
	Kind Kind
	Msg  string
	Err  error
}

func varErr(name string, kind Kind, err error, msg string) error {
	return &VarError{Name: name, Kind: kind, Msg: msg, Err: err}
}

func (e *VarError) Unwrap() error {
	return e.Err
}

func (e *VarError) Error() string {
	var buf strings.Builder
	buf.WriteString("infolist: ")
	buf.WriteString(e.Kind.String())
	buf.WriteString(" var ")
	buf.WriteString(strconv.Quote(e.Name))
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
