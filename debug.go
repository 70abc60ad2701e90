package infolist

import (
	"fmt"
	"strings"
)

const indentStep = "  "

var dumpSep = strings.Repeat("=", 80)

// Dump describes every live list, for logs and bug reports.
func (r *Registry) Dump() string {
	lists := r.Lists()
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d LIVE INFOLISTS\n", len(lists))
	for _, l := range lists {
		fmt.Fprintln(&buf, dumpSep)
		l.dump(&buf, "")
	}
	return buf.String()
}

func (l *InfoList) Dump() string {
	var buf strings.Builder
	l.dump(&buf, "")
	return buf.String()
}

func (l *InfoList) dump(w *strings.Builder, prefix string) {
	cursor := "unset"
	if l.cursor != noCursor {
		cursor = fmt.Sprint(l.cursor)
	}
	fmt.Fprintf(w, "%sinfolist %v (owner %v, %d items, cursor %s)\n", prefix, l.handle, l.owner, len(l.items), cursor)
	if l.Freed() {
		fmt.Fprintf(w, "%s%sFREED\n", prefix, indentStep)
		return
	}
	for i, it := range l.items {
		it.dump(w, prefix+indentStep, i)
	}
}

func (it *Item) dump(w *strings.Builder, prefix string, pos int) {
	fmt.Fprintf(w, "%sitem %d (%d vars)\n", prefix, pos, len(it.vars))
	for _, v := range it.vars {
		fmt.Fprintf(w, "%s%s%s %s = %v\n", prefix, indentStep, v.Value.kind, v.Name, v.Value)
	}
}
