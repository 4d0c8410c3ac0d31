// Package flate implements a resumable pull-mode decoder for DEFLATE
// compressed data (RFC 1951). The decoder consumes compressed bytes in
// arbitrarily sized chunks and produces uncompressed bytes in arbitrarily
// sized chunks; it can suspend at any byte boundary of either side and resume
// without loss of state.
package flate

import (
	"math/bits"

	"github.com/pkg/errors"
)

const (
	maxNumLit  = 286
	maxNumDist = 30
	numCodes   = 19 // number of codes in the code-length alphabet
)

// codeOrder is the fixed scatter order of the code-length code lengths in a
// dynamic block header. See RFC 1951 section 3.2.7.
var codeOrder = [numCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// ErrInvalidFormat is the single error kind raised for corrupt deflate data.
// Call sites wrap it with context; match it with errors.Is. An Inflater that
// returned it is poisoned and must be discarded (or Reset).
var ErrInvalidFormat = errors.New("flate: invalid deflate stream")

func errInvalid(msg string) error {
	return errors.Wrap(ErrInvalidFormat, msg)
}

// Status is the three-valued result of an Inflate step.
type Status int

const (
	// statusWorking is internal: the phase advanced and the outer loop keeps
	// going. It never escapes Inflate.
	statusWorking Status = iota

	// NeedMoreInput means the source was fully consumed mid-decode. Refill it
	// and call Inflate again.
	NeedMoreInput

	// NeedMoreOutput means the destination is full. Drain it and call Inflate
	// again.
	NeedMoreOutput

	// Done means the final block was decoded and every byte was delivered.
	Done
)

func (s Status) String() string {
	switch s {
	case NeedMoreInput:
		return "NeedMoreInput"
	case NeedMoreOutput:
		return "NeedMoreOutput"
	case Done:
		return "Done"
	default:
		return "Working"
	}
}

// phase is the resumable position inside the deflate block grammar.
type phase int

const (
	readNextBlock phase = iota
	processStoredBlock
	readDynamicHeader
	processLenSymbol
	processDistSymbol
	processCopy
)

// dynHeader is the scratch state for parsing one dynamic-block header. It is
// zeroed when a BTYPE=10 block begins and abandoned once both block tables
// are built.
type dynHeader struct {
	nLit     int // HLIT + 257 literal/length codes
	nDist    int // HDIST + 1 distance codes
	nCodeLen int // HCLEN + 4 code-length codes

	readCodeLen int // code-length lengths read so far
	readLen     int // code lengths decoded so far
	cltabReady  bool
}

// Inflater is the resumable DEFLATE state machine. It owns a bit reader over
// the per-call byte source, two reusable Huffman decoders, the 32 KiB history
// window, and the per-phase scratch needed to suspend mid-symbol.
//
// An Inflater must not be used concurrently. Steady-state decoding performs
// no allocation; only dynamic-header table rebuilds allocate.
type Inflater struct {
	br bitReader

	// h1 decodes the code-length alphabet while a dynamic header is being
	// parsed and the literal/length alphabet afterwards; h2 decodes
	// distances. Both are rebuilt per dynamic block.
	h1, h2 huffmanDecoder

	// Length arrays used to define the Huffman codes of a dynamic block.
	lenBits  [maxNumLit + maxNumDist]int
	codeBits [numCodes]int

	win window

	step  phase
	final bool
	err   error

	storedRemaining int // bytes left to copy in a stored block; 0 = header pending
	copyLen         int
	copyDist        int
	dyn             dynHeader

	// hl is the active literal/length decoder. distFixed marks a fixed-code
	// block, where distances are 5 raw bits rather than Huffman coded.
	hl        *huffmanDecoder
	distFixed bool
}

// NewInflater returns an Inflater ready to decode a deflate stream.
func NewInflater() *Inflater {
	inf := &Inflater{}
	inf.Reset()
	return inf
}

// Reset returns the Inflater to its initial state, reusing all buffers.
func (inf *Inflater) Reset() {
	inf.br = bitReader{}
	inf.win.reset()
	inf.step = readNextBlock
	inf.final = false
	inf.err = nil
	inf.storedRemaining = 0
	inf.copyLen = 0
	inf.copyDist = 0
	inf.dyn = dynHeader{}
	inf.hl = nil
	inf.distFixed = false
}

// Inflate decodes as much as possible given the bytes in src and the space in
// dst. It returns the counts of bytes written and consumed together with the
// reason it stopped:
//
//   - NeedMoreInput: src was consumed entirely (nSrc == len(src)).
//   - NeedMoreOutput: dst was filled entirely (nDst == len(dst)).
//   - Done: the final block is decoded and fully delivered.
//
// Corrupt data fails with an error wrapping ErrInvalidFormat; the Inflater is
// then unusable until Reset. The source is only borrowed for the duration of
// the call.
func (inf *Inflater) Inflate(dst, src []byte) (nDst, nSrc int, status Status, err error) {
	if inf.err != nil {
		return 0, 0, statusWorking, inf.err
	}

	inf.br.install(src)
	defer func() {
		nSrc = inf.br.pos
		inf.br.clear()
	}()

	for {
		// Drain-first: staged bytes go out before the machine advances, so a
		// NeedMoreOutput can only escape with dst completely full.
		if inf.win.availRead() > 0 {
			nDst += inf.win.readInto(dst[nDst:])
			if inf.win.availRead() > 0 {
				return nDst, 0, NeedMoreOutput, nil
			}
		}
		if inf.final && inf.step == readNextBlock && inf.win.availRead() == 0 {
			return nDst, 0, Done, nil
		}

		var st Status
		switch inf.step {
		case readNextBlock:
			st, err = inf.readBlockHeader()
		case processStoredBlock:
			st, err = inf.copyStoredBlock()
		case readDynamicHeader:
			st, err = inf.readDynHeader()
		case processLenSymbol:
			st, err = inf.nextLenSymbol()
		case processDistSymbol:
			st, err = inf.nextDistSymbol()
		case processCopy:
			st, err = inf.copyHistory()
		}
		if err != nil {
			inf.err = err
			return nDst, 0, statusWorking, err
		}

		switch st {
		case NeedMoreInput:
			return nDst, 0, NeedMoreInput, nil
		case NeedMoreOutput:
			// The window is full. Loop so the drain above makes room, or
			// returns NeedMoreOutput itself once dst really is full.
		case statusWorking:
		}
	}
}

// readBlockHeader consumes the 3-bit block header: BFINAL and BTYPE.
func (inf *Inflater) readBlockHeader() (Status, error) {
	for inf.br.nb < 3 {
		if !inf.br.moreBits() {
			return NeedMoreInput, nil
		}
	}
	inf.final = inf.br.b&1 == 1
	typ := (inf.br.b >> 1) & 0b11
	inf.br.consume(3)

	switch typ {
	case 0:
		// Stored blocks restart on a byte boundary; the partial byte is
		// discarded per RFC 1951 section 3.2.4.
		inf.br.alignByte()
		inf.step = processStoredBlock
		inf.storedRemaining = 0
	case 1:
		inf.step = processLenSymbol
		inf.hl = fixedLitLen()
		inf.distFixed = true
		inf.copyLen = 0
		inf.copyDist = 0
	case 2:
		inf.step = readDynamicHeader
		inf.dyn = dynHeader{}
		inf.hl = nil
		inf.distFixed = false
	default:
		return statusWorking, errInvalid("reserved block type")
	}
	return statusWorking, nil
}

// copyStoredBlock handles BTYPE=00: a 16-bit little-endian LEN, its one's
// complement NLEN, then LEN raw bytes copied through the window.
//
// The LEN/NLEN pair is read through the (byte-aligned) bit accumulator so
// that a suspension with one, two, or three header bytes buffered resumes
// cleanly with the source fully consumed.
func (inf *Inflater) copyStoredBlock() (Status, error) {
	if inf.storedRemaining == 0 {
		for inf.br.nb < 32 {
			if !inf.br.moreBits() {
				return NeedMoreInput, nil
			}
		}
		length := int(inf.br.b & 0xffff)
		nlen := int(inf.br.b >> 16 & 0xffff)
		inf.br.consume(32)
		if nlen != length^0xffff {
			return statusWorking, errInvalid("stored block length check failed")
		}
		if length == 0 {
			inf.step = readNextBlock
			return statusWorking, nil
		}
		inf.storedRemaining = length
	}

	n := inf.storedRemaining
	if avail := len(inf.br.src) - inf.br.pos; n > avail {
		n = avail
	}
	written := inf.win.writeFrom(inf.br.src[inf.br.pos : inf.br.pos+n])
	inf.br.pos += written
	inf.storedRemaining -= written
	if written < n {
		return NeedMoreOutput, nil
	}
	if inf.storedRemaining > 0 {
		return NeedMoreInput, nil
	}
	inf.step = readNextBlock
	return statusWorking, nil
}

// readDynHeader parses a BTYPE=10 header: HLIT/HDIST/HCLEN, the code-length
// code, and the run-length-encoded code lengths for both block alphabets.
// Every read is restartable; progress lives in inf.dyn.
func (inf *Inflater) readDynHeader() (Status, error) {
	d := &inf.dyn

	if d.nDist == 0 {
		for inf.br.nb < 5+5+4 {
			if !inf.br.moreBits() {
				return NeedMoreInput, nil
			}
		}
		d.nLit = int(inf.br.b&0x1f) + 257
		if d.nLit > maxNumLit {
			return statusWorking, errInvalid("too many literal/length codes")
		}
		inf.br.b >>= 5
		d.nDist = int(inf.br.b&0x1f) + 1
		if d.nDist > maxNumDist {
			return statusWorking, errInvalid("too many distance codes")
		}
		inf.br.b >>= 5
		d.nCodeLen = int(inf.br.b&0x0f) + 4
		inf.br.b >>= 4
		inf.br.nb -= 5 + 5 + 4
	}

	if !d.cltabReady {
		for ; d.readCodeLen < d.nCodeLen; d.readCodeLen++ {
			for inf.br.nb < 3 {
				if !inf.br.moreBits() {
					return NeedMoreInput, nil
				}
			}
			inf.codeBits[codeOrder[d.readCodeLen]] = int(inf.br.b & 0x07)
			inf.br.consume(3)
		}
		for i := d.nCodeLen; i < numCodes; i++ {
			inf.codeBits[codeOrder[i]] = 0
		}
		if !inf.h1.init(inf.codeBits[:]) {
			return statusWorking, errInvalid("invalid code-length code")
		}
		d.cltabReady = true
	}

	total := d.nLit + d.nDist
	for d.readLen < total {
		v, err := inf.h1.lookup(&inf.br)
		if err != nil {
			return statusWorking, err
		}
		if v < 0 {
			return NeedMoreInput, nil
		}
		sym := int(v >> huffmanValueShift)
		symLen := uint(v & huffmanCountMask)

		if sym < 16 {
			inf.lenBits[d.readLen] = sym
			inf.br.consume(symLen)
			d.readLen++
			continue
		}

		var rep, nb, b int
		switch sym {
		case 16:
			rep, nb = 3, 2
			if d.readLen == 0 {
				return statusWorking, errInvalid("length repeat with no previous length")
			}
			b = inf.lenBits[d.readLen-1]
		case 17:
			rep, nb, b = 3, 3, 0
		case 18:
			rep, nb, b = 11, 7, 0
		}
		for inf.br.nb < symLen+uint(nb) {
			if !inf.br.moreBits() {
				return NeedMoreInput, nil
			}
		}
		rep += int(inf.br.b>>symLen) & (1<<uint(nb) - 1)
		inf.br.consume(symLen + uint(nb))
		if d.readLen+rep > total {
			return statusWorking, errInvalid("length run exceeds code count")
		}
		for j := 0; j < rep; j++ {
			inf.lenBits[d.readLen] = b
			d.readLen++
		}
	}

	if !inf.h1.init(inf.lenBits[:d.nLit]) {
		return statusWorking, errInvalid("invalid literal/length code")
	}
	if !inf.h2.init(inf.lenBits[d.nLit : d.nLit+d.nDist]) {
		return statusWorking, errInvalid("invalid distance code")
	}

	inf.hl = &inf.h1
	inf.distFixed = false
	inf.step = processLenSymbol
	inf.copyLen = 0
	inf.copyDist = 0
	return statusWorking, nil
}

// nextLenSymbol decodes literal/length symbols, emitting literals straight
// into the window until one of: end-of-block (256), the start of a
// back-reference (257..285), input starvation, or a full window.
func (inf *Inflater) nextLenSymbol() (Status, error) {
	for {
		v, err := inf.hl.lookup(&inf.br)
		if err != nil {
			return statusWorking, err
		}
		if v < 0 {
			return NeedMoreInput, nil
		}
		sym := int(v >> huffmanValueShift)
		symLen := uint(v & huffmanCountMask)

		var length, n int
		switch {
		case sym < 256:
			if inf.win.availWrite() == 0 {
				return NeedMoreOutput, nil
			}
			inf.win.writeByte(byte(sym))
			inf.br.consume(symLen)
			continue
		case sym == 256:
			inf.br.consume(symLen)
			inf.step = readNextBlock
			return statusWorking, nil
		case sym < 265:
			length = sym - (257 - 3)
		case sym < 269:
			length, n = sym*2-(265*2-11), 1
		case sym < 273:
			length, n = sym*4-(269*4-19), 2
		case sym < 277:
			length, n = sym*8-(273*8-35), 3
		case sym < 281:
			length, n = sym*16-(277*16-67), 4
		case sym < 285:
			length, n = sym*32-(281*32-131), 5
		case sym < maxNumLit:
			length = 258
		default:
			return statusWorking, errInvalid("literal/length symbol out of range")
		}
		if n > 0 {
			for inf.br.nb < symLen+uint(n) {
				if !inf.br.moreBits() {
					return NeedMoreInput, nil
				}
			}
			length += int(inf.br.b>>symLen) & (1<<uint(n) - 1)
		}
		inf.br.consume(symLen + uint(n))
		inf.copyLen = length
		inf.step = processDistSymbol
		return statusWorking, nil
	}
}

// nextDistSymbol decodes the distance that follows a length: either 5 raw
// bit-reversed bits (fixed blocks) or a symbol from the distance table, then
// the extra bits per RFC 1951 section 3.2.5.
func (inf *Inflater) nextDistSymbol() (Status, error) {
	var dist int
	var consumed uint
	if inf.distFixed {
		for inf.br.nb < 5 {
			if !inf.br.moreBits() {
				return NeedMoreInput, nil
			}
		}
		dist = int(bits.Reverse8(uint8(inf.br.b&0x1f)) >> 3)
		consumed = 5
	} else {
		v, err := inf.h2.lookup(&inf.br)
		if err != nil {
			return statusWorking, err
		}
		if v < 0 {
			return NeedMoreInput, nil
		}
		dist = int(v >> huffmanValueShift)
		consumed = uint(v & huffmanCountMask)
	}

	switch {
	case dist < 4:
		dist++
	case dist < maxNumDist:
		nb := uint(dist-2) >> 1
		extra := (dist & 1) << nb
		for inf.br.nb < consumed+nb {
			if !inf.br.moreBits() {
				return NeedMoreInput, nil
			}
		}
		extra |= int(inf.br.b>>consumed) & (1<<nb - 1)
		consumed += nb
		dist = 1<<(nb+1) + 1 + extra
	default:
		return statusWorking, errInvalid("distance symbol out of range")
	}

	if dist > inf.win.historySize() {
		return statusWorking, errInvalid("back-reference beyond decoded history")
	}
	inf.br.consume(consumed)
	inf.copyDist = dist
	inf.step = processCopy
	return statusWorking, nil
}

// copyHistory executes the pending back-reference, suspending on a full
// window with the remaining length and distance intact.
func (inf *Inflater) copyHistory() (Status, error) {
	if inf.win.availWrite() == 0 {
		return NeedMoreOutput, nil
	}
	if inf.copyLen > 0 {
		inf.copyLen -= inf.win.writeCopy(inf.copyDist, inf.copyLen)
		if inf.win.availWrite() == 0 || inf.copyLen > 0 {
			return NeedMoreOutput, nil
		}
	}
	inf.step = processLenSymbol
	inf.copyLen = 0
	inf.copyDist = 0
	return statusWorking, nil
}
