package ldf

import (
	"encoding/binary"
	"io"
)

// ReassemblerState is the reassembler's double-buffered chunk state
// machine (§4.B).
type ReassemblerState int

const (
	StateIdle ReassemblerState = iota
	StateReceiving
	StateComplete
	StateAbort
)

// chunk header: this_chunk_size (bytes), total_num_chunks, current_chunk_num.
const chunkHeaderWords = 3

// spillFooterBytes is the exact byte size of the two-word spill footer
// chunk, per LDFPixieTranslator::ParseDataBuffer.
const spillFooterBytes = 20

// Spill is the logical unit the reassembler produces: the concatenated
// words of one acquisition readout, plus the full_spill flag (§3
// "Spill") — false when a chunk-index gap forced the reassembler to
// continue accumulating with missing data rather than abort outright.
type Spill struct {
	Words     []uint32
	FullSpill bool
}

// Reassembler reassembles variable-size spills out of a stream of
// fixed 8194-word file buffers, holding one buffer of lookahead so a
// single ENDFILE buffer can be told apart from the double-EOF
// terminator. Each chunk, header and body, is read from the one buffer
// it starts in; chunks are not joined across a buffer boundary.
type Reassembler struct {
	r      io.Reader
	log    Logger
	buf    [2][fileBufferWords]uint32
	bcount int
	cur    int // index into buf of the buffer currently being drained
	pos    int // next unread word offset within buf[cur]

	curTag, curSize         uint32
	nextTag, nextSize       uint32
	haveNext                bool

	prevChunkNum  int32
	prevNumChunks uint32
	firstChunk    bool
	fullSpill     bool

	data          []uint32
	goodChunks    uint64
	missingChunks uint64
}

// NewReassembler constructs a Reassembler reading file buffers from r.
func NewReassembler(r io.Reader, log Logger) *Reassembler {
	if log == nil {
		log = NopLogger{}
	}
	return &Reassembler{r: r, log: log, firstChunk: true, fullSpill: true, prevChunkNum: -1}
}

// GoodChunks and MissingChunks report the running chunk-level
// bookkeeping described in SPEC_FULL.md's lifecycle counters.
func (rs *Reassembler) GoodChunks() uint64    { return rs.goodChunks }
func (rs *Reassembler) MissingChunks() uint64 { return rs.missingChunks }

// readFileBuffer reads one fixed fileBufferWords buffer from the
// stream into buf[slot], returning its tag and size words.
func (rs *Reassembler) readFileBuffer(slot int) (tag, size uint32, err error) {
	if err := binary.Read(rs.r, binary.LittleEndian, &rs.buf[slot]); err != nil {
		return 0, 0, err
	}
	tag = rs.buf[slot][0]
	size = rs.buf[slot][1]
	return tag, size, nil
}

// advanceBuffer rotates in the next file buffer, matching
// LDFPixieTranslator::ReadNextBuffer's alternating buffer1/buffer2
// roles and one-buffer lookahead.
func (rs *Reassembler) advanceBuffer(force bool) (eof bool, err error) {
	if rs.bcount == 0 {
		tag, size, err := rs.readFileBuffer(0)
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		rs.cur, rs.pos = 0, 2
		rs.curTag, rs.curSize = tag, size
		rs.bcount = 1
		rs.haveNext = false
		return false, nil
	}

	if !force && rs.pos+chunkHeaderWords < fileBufferWords {
		for rs.pos < fileBufferWords-1 && rs.buf[rs.cur][rs.pos] == tagENDBUFF {
			rs.pos++
		}
		if rs.pos+chunkHeaderWords < fileBufferWords {
			return false, nil
		}
	}

	nextSlot := 1 - rs.cur
	var tag, size uint32
	if rs.haveNext {
		// The lookahead buffer already sits in the other slot.
		tag, size = rs.nextTag, rs.nextSize
	} else {
		tag, size, err = rs.readFileBuffer(nextSlot)
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		rs.bcount++
	}
	rs.cur = nextSlot
	rs.pos = 2
	rs.curTag, rs.curSize = tag, size

	peekSlot := 1 - nextSlot
	if peekTag, peekSize, peekErr := rs.readFileBuffer(peekSlot); peekErr == nil {
		rs.nextTag, rs.nextSize = peekTag, peekSize
		rs.haveNext = true
		rs.bcount++
	} else {
		rs.haveNext = false
	}
	return false, nil
}

// Next drains file buffers until one complete spill's words have been
// gathered into the returned Spill, or the stream signals end of file
// (state StateComplete with a nil Spill.Words) or a chunk reorder
// forces the in-progress spill to be abandoned (state StateAbort). A
// chunk-index gap does not abort the spill: it is counted into
// MissingChunks, marks the spill's FullSpill false, and accumulation
// continues from the chunk observed (§4.B's state table).
func (rs *Reassembler) Next() (spill Spill, state ReassemblerState, err error) {
	rs.data = rs.data[:0]

	for {
		eof, err := rs.advanceBuffer(false)
		if err != nil {
			return Spill{}, StateAbort, err
		}
		if eof {
			return Spill{}, StateComplete, nil
		}

		if rs.curTag == tagENDFILE {
			if rs.haveNext && rs.nextTag == tagENDFILE {
				return Spill{}, StateComplete, nil
			}
			if _, err := rs.advanceBuffer(true); err != nil {
				return Spill{}, StateAbort, err
			}
			continue
		}

		if rs.curTag != tagDATA {
			rs.log.Error("non data/non eof buffer", "reassembler")
			rs.missingChunks++
			missingChunksTotal.Inc()
			if _, err := rs.advanceBuffer(true); err != nil {
				return Spill{}, StateAbort, err
			}
			return Spill{}, StateAbort, &ErrBadBufferTag{Tag: rs.curTag}
		}

		sizeBytes := rs.buf[rs.cur][rs.pos]
		totalChunks := rs.buf[rs.cur][rs.pos+1]
		chunkNum := rs.buf[rs.cur][rs.pos+2]
		rs.pos += chunkHeaderWords

		switch {
		case rs.firstChunk:
			rs.firstChunk = false
			rs.fullSpill = true
			if chunkNum != 0 {
				rs.missingChunks += uint64(chunkNum)
				missingChunksTotal.Add(float64(chunkNum))
				rs.fullSpill = false
			}
		case totalChunks != rs.prevNumChunks:
			lost := int64(rs.prevNumChunks) - 1 - int64(rs.prevChunkNum)
			rs.missingChunks += uint64(lost)
			missingChunksTotal.Add(float64(lost))
			rs.firstChunk = true
			rs.prevChunkNum = -1
			if _, err := rs.advanceBuffer(true); err != nil {
				return Spill{}, StateAbort, err
			}
			return Spill{}, StateAbort, nil
		case int64(chunkNum) != int64(rs.prevChunkNum)+1:
			// Chunk-index gap: not fatal. Count the missing chunks,
			// mark the spill partial, and keep accumulating from this
			// chunk — the chunk's body is still appended below.
			gap := int64(chunkNum) - int64(rs.prevChunkNum) - 1
			rs.missingChunks += uint64(gap)
			missingChunksTotal.Add(float64(gap))
			rs.fullSpill = false
		}

		rs.prevChunkNum = int32(chunkNum)
		rs.prevNumChunks = totalChunks

		if chunkNum == totalChunks-1 {
			if sizeBytes != spillFooterBytes {
				rs.missingChunks++
				missingChunksTotal.Inc()
				rs.firstChunk = true
				rs.prevChunkNum = -1
				if _, err := rs.advanceBuffer(true); err != nil {
					return Spill{}, StateAbort, err
				}
				return Spill{}, StateAbort, nil
			}
			rs.data = append(rs.data, rs.buf[rs.cur][rs.pos], rs.buf[rs.cur][rs.pos+1])
			rs.pos += 2
			rs.goodChunks++
			goodChunksTotal.Inc()
			fullSpill := rs.fullSpill
			rs.firstChunk = true
			rs.prevChunkNum = -1
			spillsEmittedTotal.Inc()
			return Spill{Words: rs.data, FullSpill: fullSpill}, StateComplete, nil
		}

		if sizeBytes < 12 {
			missingChunksTotal.Inc()
			rs.missingChunks++
			rs.firstChunk = true
			rs.prevChunkNum = -1
			return Spill{}, StateAbort, &ErrChunkTooShort{SizeByte: sizeBytes}
		}

		bodyWords := (sizeBytes - 12) / 4
		rs.data = append(rs.data, rs.buf[rs.cur][rs.pos:rs.pos+int(bodyWords)]...)
		rs.pos += int(bodyWords)
		rs.goodChunks++
		goodChunksTotal.Inc()
	}
}
