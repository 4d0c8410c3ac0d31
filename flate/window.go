package flate

// windowSize is the deflate look-back limit: back-references may reach up to
// 2^15 bytes behind the write cursor.
const windowSize = 1 << 15

// window is the 32 KiB history buffer. It serves double duty: it is the
// source for LZ77 back-reference copies and the staging area for bytes on
// their way to the caller's output buffer.
//
// The cursors only reset to the start once every buffered byte has been
// drained with the write cursor at the buffer end. Wrapping any earlier would
// destroy bytes the caller has not received yet.
type window struct {
	hist  [windowSize]byte
	wrPos int
	rdPos int
	full  bool // a full window of history has been written
}

func (w *window) reset() {
	w.wrPos = 0
	w.rdPos = 0
	w.full = false
}

// historySize reports how far back a reference may legally reach.
func (w *window) historySize() int {
	if w.full {
		return windowSize
	}
	return w.wrPos
}

// availRead reports the number of bytes staged for the caller.
func (w *window) availRead() int {
	return w.wrPos - w.rdPos
}

// availWrite reports the remaining space before the buffer end.
func (w *window) availWrite() int {
	return windowSize - w.wrPos
}

// writeByte appends one byte. Precondition: availWrite() > 0.
func (w *window) writeByte(c byte) {
	w.hist[w.wrPos] = c
	w.wrPos++
}

// writeFrom bulk-appends bytes from src, returning how many fit before the
// buffer end. Stored blocks copy through here.
func (w *window) writeFrom(src []byte) int {
	n := copy(w.hist[w.wrPos:], src)
	w.wrPos += n
	return n
}

// writeCopy copies a string at (distance, length) to the write cursor and
// returns the number of bytes copied, which is short when the cursor hits the
// buffer end. When dist < length the copy overlaps itself: the freshly
// written bytes are re-read, so each pass copies at most the span already
// materialised.
//
// Precondition: 0 < dist <= historySize().
func (w *window) writeCopy(dist, length int) int {
	wrBase := w.wrPos
	wrPos := wrBase
	rdPos := wrPos - dist
	wrEnd := wrPos + length
	if wrEnd > windowSize {
		wrEnd = windowSize
	}

	// Non-overlapping tail of the previous lap of the buffer.
	if rdPos < 0 {
		rdPos += windowSize
		wrPos += copy(w.hist[wrPos:wrEnd], w.hist[rdPos:])
		rdPos = 0
	}

	for wrPos < wrEnd {
		wrPos += copy(w.hist[wrPos:wrEnd], w.hist[rdPos:wrPos])
	}

	w.wrPos = wrPos
	return wrPos - wrBase
}

// readInto drains staged bytes into dst, advancing the read cursor. Once the
// drain empties the buffer with the write cursor at the end, both cursors
// reset and the window is marked full, unlocking back-references across the
// whole 32 KiB.
func (w *window) readInto(dst []byte) int {
	n := copy(dst, w.hist[w.rdPos:w.wrPos])
	w.rdPos += n
	if w.rdPos == w.wrPos && w.wrPos == windowSize {
		w.rdPos = 0
		w.wrPos = 0
		w.full = true
	}
	return n
}
