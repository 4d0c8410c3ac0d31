// Package zlib frames a flate stream per RFC 1950: a two-byte header, an
// optional preset-dictionary id, the DEFLATE body, and a four-byte Adler-32
// trailer. ParseHeader and ParseTrailer are non-consuming on short input so a
// caller feeding arbitrary chunks can simply retry with more bytes.
package zlib

import "encoding/binary"

const (
	headerSize  = 2
	dictIDSize  = 4
	trailerSize = 4

	// FLG bit marking a preset dictionary.
	flagDict = 0x20

	// CM value for DEFLATE, the only method RFC 1950 defines.
	methodDeflate = 8
)

// Header is the parsed RFC 1950 stream header. DictID is nonzero only when
// the FDICT flag was set; rejecting it is the caller's decision.
type Header struct {
	CMF    byte
	FLG    byte
	DictID uint32
}

// Method extracts the compression method from the CMF byte.
func (h *Header) Method() byte {
	return h.CMF & 0x0f
}

// HasDict reports whether the stream declares a preset dictionary.
func (h *Header) HasDict() bool {
	return h.FLG&flagDict != 0
}

// checkOK reports whether the FCHECK field is consistent: the CMF/FLG pair,
// read as a big-endian 16-bit number, must be a multiple of 31.
func (h *Header) checkOK() bool {
	return (uint16(h.CMF)<<8|uint16(h.FLG))%31 == 0
}

// ParseHeader reads the zlib header, plus the big-endian dictionary id when
// FDICT is set. It returns the header and the number of bytes consumed, or
// (nil, 0) when src does not yet hold enough bytes.
func ParseHeader(src []byte) (*Header, int) {
	if len(src) < headerSize {
		return nil, 0
	}
	h := &Header{CMF: src[0], FLG: src[1]}
	n := headerSize
	if h.HasDict() {
		if len(src) < headerSize+dictIDSize {
			return nil, 0
		}
		h.DictID = binary.BigEndian.Uint32(src[headerSize : headerSize+dictIDSize])
		n += dictIDSize
	}
	return h, n
}

// ParseTrailer reads the big-endian Adler-32 trailer. It returns the checksum
// and the number of bytes consumed, or (0, 0) when src is short.
func ParseTrailer(src []byte) (uint32, int) {
	if len(src) < trailerSize {
		return 0, 0
	}
	return binary.BigEndian.Uint32(src[:trailerSize]), trailerSize
}
