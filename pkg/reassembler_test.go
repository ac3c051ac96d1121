package ldf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFileBuffer(t *testing.T, w *bytes.Buffer, words []uint32) {
	t.Helper()
	padded := make([]uint32, fileBufferWords)
	copy(padded, words)
	for i := len(words); i < fileBufferWords; i++ {
		padded[i] = tagENDBUFF
	}
	assert.NoError(t, binary.Write(w, binary.LittleEndian, padded))
}

// oneSpillStream builds a single regular chunk plus a two-word footer
// chunk inside one DATA buffer, followed by two ENDFILE buffers (the
// double-EOF sentinel).
func oneSpillStream(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer

	dataBuffer := []uint32{
		tagDATA, 8192,
		16, 2, 0, // chunk 0: size=16B, total=2, current=0
		0xAAAAAAAA,
		20, 2, 1, // chunk 1 (footer): size=20B, total=2, current=1
		0x11111111, 0x22222222,
	}
	writeFileBuffer(t, &buf, dataBuffer)
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})
	return &buf
}

func TestReassemblerEmitsOneSpillThenDoubleEOF(t *testing.T) {
	rs := NewReassembler(oneSpillStream(t), nil)

	spill, state, err := rs.Next()
	assert.NoError(t, err)
	assert.Equal(t, StateComplete, state)
	assert.Equal(t, []uint32{0xAAAAAAAA, 0x11111111, 0x22222222}, spill.Words)
	assert.True(t, spill.FullSpill)
	assert.Equal(t, uint64(2), rs.GoodChunks())

	spill, state, err = rs.Next()
	assert.NoError(t, err)
	assert.Equal(t, StateComplete, state)
	assert.Nil(t, spill.Words)
}

// TestReassemblerToleratesChunkGap is spec Scenario 4: three chunks
// claiming total=4 but supplying indices {0,1,3}. The reassembler must
// still emit one spill, with full_spill=false, missing_chunks
// incremented by the single skipped index, and chunk 0/1/3's bodies
// concatenated (not chunk 2's, since it was never seen).
func TestReassemblerToleratesChunkGap(t *testing.T) {
	var buf bytes.Buffer
	dataBuffer := []uint32{
		tagDATA, 8192,
		16, 4, 0, // chunk 0 of 4
		0xAAAAAAAA,
		16, 4, 1, // chunk 1 of 4
		0xBBBBBBBB,
		20, 4, 3, // chunk 3 (footer): skips chunk 2
		0x11111111, 0x22222222,
	}
	writeFileBuffer(t, &buf, dataBuffer)
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})

	rs := NewReassembler(&buf, nil)
	spill, state, err := rs.Next()
	assert.NoError(t, err)
	assert.Equal(t, StateComplete, state)
	assert.False(t, spill.FullSpill)
	assert.Equal(t, []uint32{0xAAAAAAAA, 0xBBBBBBBB, 0x11111111, 0x22222222}, spill.Words)
	assert.Equal(t, uint64(1), rs.MissingChunks())
	assert.Equal(t, uint64(3), rs.GoodChunks())
}

func TestReassemblerAbortsOnChunkReorder(t *testing.T) {
	var buf bytes.Buffer
	dataBuffer := []uint32{
		tagDATA, 8192,
		16, 3, 0, // chunk 0 of 3
		0xAAAAAAAA,
		16, 5, 1, // total_chunks changes mid-spill: fatal
		0xBBBBBBBB,
	}
	writeFileBuffer(t, &buf, dataBuffer)
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})

	rs := NewReassembler(&buf, nil)
	spill, state, err := rs.Next()
	assert.NoError(t, err)
	assert.Equal(t, StateAbort, state)
	assert.Nil(t, spill.Words)
}

func TestReassemblerRejectsShortChunk(t *testing.T) {
	var buf bytes.Buffer
	dataBuffer := []uint32{
		tagDATA, 8192,
		8, 2, 0, // declared size below the 12-byte chunk header
	}
	writeFileBuffer(t, &buf, dataBuffer)
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})
	writeFileBuffer(t, &buf, []uint32{tagENDFILE, 0})

	rs := NewReassembler(&buf, nil)
	_, state, err := rs.Next()
	assert.Equal(t, StateAbort, state)
	var short *ErrChunkTooShort
	assert.ErrorAs(t, err, &short)
}
