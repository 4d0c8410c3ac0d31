package zlib

import (
	"hash"
	"hash/adler32"
	"io"

	"github.com/pkg/errors"

	"github.com/google/pjflate/flate"
)

var (
	// ErrHeader is returned for a malformed zlib header: bad FCHECK or a
	// compression method other than deflate.
	ErrHeader = errors.New("zlib: invalid header")

	// ErrDictionary is returned for streams that declare a preset dictionary.
	ErrDictionary = errors.New("zlib: preset dictionary not supported")

	// ErrChecksum is returned when the Adler-32 trailer does not match the
	// decoded payload.
	ErrChecksum = errors.New("zlib: invalid checksum")

	errClosed = errors.New("zlib: reader is closed")
)

// readBufSize is the size of the compressed-input buffer; it matches the
// history window.
const readBufSize = 32 * 1024

const (
	stageHeader = iota
	stageBody
	stageTrailer
	stageDone
)

// Reader decompresses a zlib stream from an underlying io.Reader. It parses
// the header, pumps the pull-mode Inflater, folds every produced byte into a
// running Adler-32, and verifies the trailer before reporting io.EOF.
type Reader struct {
	src    io.Reader
	inf    *flate.Inflater
	digest hash.Hash32
	buf    []byte
	in     []byte // unread window into buf
	stage  int
	err    error
}

// NewReader returns a Reader decompressing from src. The header is not read
// until the first call to Read.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:    src,
		inf:    flate.NewInflater(),
		digest: adler32.New(),
		buf:    make([]byte, readBufSize),
	}
}

// Reset discards the Reader's state and makes it equivalent to a NewReader on
// src, reusing the decoder and buffers.
func (r *Reader) Reset(src io.Reader) {
	r.src = src
	r.inf.Reset()
	r.digest.Reset()
	r.in = nil
	r.stage = stageHeader
	r.err = nil
}

// fill compacts the unread bytes to the front of the buffer and tops it off
// from the underlying reader. EOF mid-stream is io.ErrUnexpectedEOF.
func (r *Reader) fill() error {
	n := copy(r.buf, r.in)
	for {
		m, err := r.src.Read(r.buf[n:])
		if m > 0 {
			r.in = r.buf[:n+m]
			return nil
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return errors.Wrap(err, "zlib: read compressed data")
		}
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for {
		switch r.stage {
		case stageHeader:
			hdr, n := ParseHeader(r.in)
			if hdr == nil {
				if err := r.fill(); err != nil {
					r.err = err
					return 0, r.err
				}
				continue
			}
			r.in = r.in[n:]
			if hdr.Method() != methodDeflate || !hdr.checkOK() {
				r.err = ErrHeader
				return 0, r.err
			}
			if hdr.HasDict() {
				r.err = ErrDictionary
				return 0, r.err
			}
			r.stage = stageBody

		case stageBody:
			if len(p) == 0 {
				return 0, nil
			}
			nDst, nSrc, status, err := r.inf.Inflate(p, r.in)
			r.in = r.in[nSrc:]
			if nDst > 0 {
				r.digest.Write(p[:nDst])
			}
			if err != nil {
				r.err = err
				return nDst, r.err
			}
			switch status {
			case flate.Done:
				r.stage = stageTrailer
				if nDst > 0 {
					return nDst, nil
				}
			case flate.NeedMoreOutput:
				return nDst, nil
			case flate.NeedMoreInput:
				// Don't block on the underlying reader while holding data.
				if nDst > 0 {
					return nDst, nil
				}
				if err := r.fill(); err != nil {
					r.err = err
					return 0, r.err
				}
			}

		case stageTrailer:
			sum, n := ParseTrailer(r.in)
			if n == 0 {
				if err := r.fill(); err != nil {
					r.err = err
					return 0, r.err
				}
				continue
			}
			r.in = r.in[n:]
			if sum != r.digest.Sum32() {
				r.err = ErrChecksum
				return 0, r.err
			}
			r.stage = stageDone
			return 0, io.EOF

		case stageDone:
			return 0, io.EOF
		}
	}
}

// Close marks the Reader unusable. It does not close the underlying reader.
func (r *Reader) Close() error {
	if r.err != nil && r.err != io.EOF {
		return r.err
	}
	r.err = errClosed
	return nil
}
