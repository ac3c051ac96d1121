package ldf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Buffer tags, stored as the first little-endian word of every
// fixed-size buffer in the stream (§4.D "Buffer framing").
const (
	tagDIR     uint32 = 0x20524944
	tagHEAD    uint32 = 0x44414548
	tagDATA    uint32 = 0x41544144
	tagENDFILE uint32 = 0x20464F45
	tagENDBUFF uint32 = 0xFFFFFFFF
)

const (
	dirBufferWords  = 8192
	headBufferWords = 64
	fileBufferWords = 8194
)

// dirBody is the fixed layout following the DIR tag and size words.
type dirBody struct {
	TotalFileBuffers uint32
	Unknown0         uint32
	Unknown1         uint32
	RunNumber        uint32
	Unknown2         uint32
}

// headBody is the fixed layout following the HEAD tag and size words.
// Each string field is stored NUL-padded to its declared width; cString
// trims at the first embedded NUL, or returns the full width if absent.
type headBody struct {
	Facility [8]byte
	Format   [8]byte
	Type     [16]byte
	Date     [16]byte
	RunTitle [80]byte
	RunNum   uint32
}

func (h headBody) facility() string { return cString(h.Facility[:]) }
func (h headBody) format() string   { return cString(h.Format[:]) }
func (h headBody) kind() string     { return cString(h.Type[:]) }
func (h headBody) date() string     { return cString(h.Date[:]) }
func (h headBody) title() string    { return cString(h.RunTitle[:]) }

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// readDirBuffer reads and validates the DIR buffer at the head of a
// file, returning the run number. A tag or size mismatch is
// ErrBadPrefixBuffer, per LDFPixieTranslator's ParseDirBuffer.
func readDirBuffer(r io.Reader, filename string) (runNumber uint32, err error) {
	var tag, size, totalBufferWords uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return 0, fmt.Errorf("reading DIR tag: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, fmt.Errorf("reading DIR size: %w", err)
	}
	if tag != tagDIR || size != dirBufferWords {
		return 0, &ErrBadPrefixBuffer{Filename: filename, Want: "DIR", Got: tag}
	}
	if err := binary.Read(r, binary.LittleEndian, &totalBufferWords); err != nil {
		return 0, fmt.Errorf("reading DIR fileBufferSize: %w", err)
	}
	if totalBufferWords != fileBufferWords {
		return 0, &ErrBadPrefixBuffer{Filename: filename, Want: "DIR", Got: totalBufferWords}
	}
	var body dirBody
	if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
		return 0, fmt.Errorf("reading DIR body: %w", err)
	}
	return body.RunNumber, nil
}

// readHeadBuffer reads and validates the HEAD buffer that immediately
// follows DIR. A tag or size mismatch is ErrBadPrefixBuffer, per
// LDFPixieTranslator's ParseHeadBuffer.
func readHeadBuffer(r io.Reader, filename string) (headBody, error) {
	var tag, size uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return headBody{}, fmt.Errorf("reading HEAD tag: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return headBody{}, fmt.Errorf("reading HEAD size: %w", err)
	}
	if tag != tagHEAD || size != headBufferWords {
		return headBody{}, &ErrBadPrefixBuffer{Filename: filename, Want: "HEAD", Got: tag}
	}
	var body headBody
	if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
		return headBody{}, fmt.Errorf("reading HEAD body: %w", err)
	}
	return body, nil
}
