/*
Package infolist implements generic, introspectable lists of typed records.

An InfoList is an ordered list of items; an item is an ordered bag of named,
typed variables. Plugins use infolists to describe their internal state without
exposing its real layout, and the upgrade package serializes them to disk so a
process can replace its executable and restore its state afterwards.

# Model

**Values.** A variable holds one of five kinds of values: a 32-bit integer,
a string, an opaque pointer handle, a byte buffer or a timestamp (whole Unix
seconds). Each kind has a one-letter tag: i, s, p, b, t.

**Items.** Variable names are non-empty and unique within an item. Insertion
order is kept and defines the field list returned by Fields, which is
"<tag>:<name>" joined by commas. The field list is computed once per item and
cached; variables added later do not show up in it.

**Cursor.** Every list has a cursor which is initially unset. Next from an
unset cursor moves to the first item, Prev from an unset cursor moves to the
last one; stepping past either end unsets the cursor again. Typed accessors
(Integer, String, Pointer, Buffer, Time) read from the item under the cursor
and return zero values when there is no such item, no such variable, or the
variable has another kind.

**Registry.** Lists are created by a Registry, which hands out (index,
generation) handles. A handle of a freed list never validates again, even if
its slot is reused. Lists can carry an owner token so that everything a plugin
allocated can be released when the plugin goes away.

# Concurrency

The registry is safe for concurrent use. Individual lists are not: a list
belongs to whoever created it.
*/
package infolist
