package domain

import "strconv"

// Cursor is the last fully processed position in the inbound message
// stream. It is tri-state: never set (first run, fast-forward required) or
// set to an update id. Zero is a valid set position, not a sentinel.
type Cursor struct {
	id  int64
	set bool
}

func UnsetCursor() Cursor { return Cursor{} }

func CursorAt(id int64) Cursor { return Cursor{id: id, set: true} }

func (c Cursor) IsSet() bool { return c.set }

// ID is meaningful only when IsSet is true.
func (c Cursor) ID() int64 { return c.id }

// Advance moves the cursor forward to id. It never moves backwards; an unset
// cursor becomes set.
func (c Cursor) Advance(id int64) Cursor {
	if c.set && id <= c.id {
		return c
	}
	return CursorAt(id)
}

func (c Cursor) String() string {
	if !c.set {
		return "unset"
	}
	return strconv.FormatInt(c.id, 10)
}
