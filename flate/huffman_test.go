package flate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeOne runs a lookup over src and consumes the decoded code.
func decodeOne(t *testing.T, h *huffmanDecoder, br *bitReader) int {
	t.Helper()

	v, err := h.lookup(br)
	require.NoError(t, err)
	require.GreaterOrEqual(t, v, int32(0), "unexpected input starvation")
	br.consume(uint(v & huffmanCountMask))
	return int(v >> huffmanValueShift)
}

func TestHuffmanInitCompleteness(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		ok      bool
	}{
		{"two one-bit codes", []int{1, 1}, true},
		{"classic mixed", []int{2, 1, 3, 3}, true},
		{"single one-bit code", []int{1}, true}, // legal one-symbol exception
		{"incomplete", []int{2, 2, 2}, false},
		{"oversubscribed", []int{1, 1, 1}, false},
		{"single two-bit code", []int{2}, false},
		{"all absent", []int{0, 0, 0}, true}, // empty alphabet builds, fails on probe
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h huffmanDecoder
			assert.Equal(t, tt.ok, h.init(tt.lengths))
		})
	}
}

func TestHuffmanFixedTableSymbols(t *testing.T) {
	h := fixedLitLen()

	for _, sym := range []int{0, 'A', 143, 144, 255, 256, 257, 279, 280, 287} {
		w := &bitWriter{}
		w.fixedLiteral(sym)

		br := &bitReader{}
		br.install(w.bytes())
		assert.Equal(t, sym, decodeOne(t, h, br), "symbol %d", sym)
	}
}

func TestHuffmanLookupDoesNotConsume(t *testing.T) {
	h := fixedLitLen()

	w := &bitWriter{}
	w.fixedLiteral('A')

	br := &bitReader{}
	br.install(w.bytes())

	v1, err := h.lookup(br)
	require.NoError(t, err)
	v2, err := h.lookup(br)
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "lookup must leave the accumulator untouched")
	assert.Equal(t, uint(8), br.nb)
}

func TestHuffmanLookupStarvation(t *testing.T) {
	h := fixedLitLen()

	// Every fixed literal/length code is at least 7 bits; 4 buffered bits are
	// not enough.
	br := &bitReader{}
	br.b = 0x07
	br.nb = 4

	v, err := h.lookup(br)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
	assert.Equal(t, uint(4), br.nb, "starved lookup must preserve buffered bits")
}

func TestHuffmanLongCodesUseLinkTables(t *testing.T) {
	// A maximally skewed yet complete code: one symbol per length, with the
	// deepest level split in two. Codes longer than 9 bits must resolve
	// through the secondary tables.
	lengths := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 12}

	var h huffmanDecoder
	require.True(t, h.init(lengths))
	require.NotEmpty(t, h.links)

	codeFor := func(sym int) (uint32, uint) {
		if sym == 0 {
			return 0, 1
		}
		n := uint(lengths[sym])
		if sym == len(lengths)-1 {
			return 1<<n - 1, n // all ones
		}
		return 1<<n - 2, n // all ones but the last bit
	}

	w := &bitWriter{}
	for sym := range lengths {
		code, n := codeFor(sym)
		w.writeCode(code, n)
	}

	br := &bitReader{}
	br.install(w.bytes())
	for sym := range lengths {
		assert.Equal(t, sym, decodeOne(t, &h, br), "symbol %d", sym)
	}
}

func TestHuffmanOneSymbolAlphabet(t *testing.T) {
	var h huffmanDecoder
	require.True(t, h.init([]int{1}))

	br := &bitReader{}
	br.install([]byte{0x00})
	assert.Equal(t, 0, decodeOne(t, &h, br))

	// The unassigned 1-bit pattern is a hard error.
	br2 := &bitReader{}
	br2.install([]byte{0x01})
	_, err := h.lookup(br2)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestHuffmanReinitClearsOldTable(t *testing.T) {
	var h huffmanDecoder
	require.True(t, h.init([]int{1, 1}))
	require.True(t, h.init([]int{1}))

	// Bit pattern 1 decoded to symbol 1 under the old table; after the
	// rebuild it must be rejected, not served stale.
	br := &bitReader{}
	br.install([]byte{0x01})
	_, err := h.lookup(br)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestHuffmanEmptyAlphabetFailsOnProbe(t *testing.T) {
	var h huffmanDecoder
	require.True(t, h.init([]int{0, 0}))

	br := &bitReader{}
	br.install([]byte{0x55})
	_, err := h.lookup(br)
	require.ErrorIs(t, err, ErrInvalidFormat)
}
