package flate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitReaderAccumulatesLSBFirst(t *testing.T) {
	br := &bitReader{}
	br.install([]byte{0xa5, 0x01})

	require.True(t, br.moreBits())
	assert.Equal(t, uint64(0xa5), br.b)
	assert.Equal(t, uint(8), br.nb)

	require.True(t, br.moreBits())
	assert.Equal(t, uint64(0x01a5), br.b)
	assert.Equal(t, uint(16), br.nb)

	assert.False(t, br.moreBits(), "source is exhausted")
	assert.Equal(t, 2, br.pos)
}

func TestBitReaderConsume(t *testing.T) {
	br := &bitReader{}
	br.install([]byte{0b1101_0110})
	require.True(t, br.moreBits())

	assert.Equal(t, uint64(0b110), br.b&0b111)
	br.consume(3)
	assert.Equal(t, uint(5), br.nb)
	assert.Equal(t, uint64(0b11010), br.b)
}

func TestBitReaderSurvivesSourceSwap(t *testing.T) {
	br := &bitReader{}
	br.install([]byte{0x0f})
	require.True(t, br.moreBits())
	br.clear()

	// Partial bits stay live across a refill of the source.
	br.install([]byte{0xf0})
	require.True(t, br.moreBits())
	assert.Equal(t, uint64(0xf00f), br.b)
	assert.Equal(t, uint(16), br.nb)
}

func TestBitReaderAlignByte(t *testing.T) {
	br := &bitReader{}
	br.install([]byte{0xff})
	require.True(t, br.moreBits())
	br.consume(3)

	br.alignByte()
	assert.Zero(t, br.b)
	assert.Zero(t, br.nb)
}
