package ldf

import "fmt"

// ErrCorruptEvent is raised by the bit-field decoder when a channel
// event fails the length-coherence invariant (I1) or the word range is
// shorter than the declared event size.
type ErrCorruptEvent struct {
	Crate, Slot, Channel uint32
	Reason               string
}

func (e *ErrCorruptEvent) Error() string {
	return fmt.Sprintf("corrupt event at crate %d slot %d channel %d: %s",
		e.Crate, e.Slot, e.Channel, e.Reason)
}

// ErrConfigMiss is raised when no module configuration entry exists for
// a (crate,slot) pair encountered in a spill.
type ErrConfigMiss struct {
	Crate, Slot uint32
}

func (e *ErrConfigMiss) Error() string {
	return fmt.Sprintf("no module configuration for crate %d slot %d", e.Crate, e.Slot)
}

// ErrBadPrefixBuffer is raised when a DIR or HEAD buffer's magic or
// declared size doesn't match the expected constants.
type ErrBadPrefixBuffer struct {
	Filename string
	Want     string
	Got      uint32
}

func (e *ErrBadPrefixBuffer) Error() string {
	return fmt.Sprintf("bad %s buffer in %q: got tag/size 0x%08x", e.Want, e.Filename, e.Got)
}

// ErrBadBufferTag is raised by the reassembler when a buffer's tag is
// neither DATA nor an EOF marker.
type ErrBadBufferTag struct {
	Tag uint32
}

func (e *ErrBadBufferTag) Error() string {
	return fmt.Sprintf("unexpected buffer tag 0x%08x", e.Tag)
}

// ErrChunkTooShort is raised when a chunk declares a body smaller than
// the 12-byte chunk header it must at least contain.
type ErrChunkTooShort struct {
	SpillID  uint64
	SizeByte uint32
}

func (e *ErrChunkTooShort) Error() string {
	return fmt.Sprintf("chunk at spill %d has size %d bytes, smaller than the 12-byte chunk header",
		e.SpillID, e.SizeByte)
}

// ErrUnexpectedVSN is raised by the demultiplexer when a spill segment
// header carries a VSN outside {<14, 1000, 9999}.
type ErrUnexpectedVSN struct {
	SpillID uint64
	VSN     uint32
}

func (e *ErrUnexpectedVSN) Error() string {
	return fmt.Sprintf("unexpected VSN %d at spill %d", e.VSN, e.SpillID)
}

// ErrOpenFile wraps a filesystem error encountered opening an input file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }
