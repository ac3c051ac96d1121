package ldf

// Bit masks and shifts for the digitizer event word layout (§4.A).
// Masks are inclusive: bits [3:0] means mask bits 3, 2, 1, 0.

const (
	lower16BitMask uint32 = 0x0000FFFF
	upper16BitMask uint32 = 0xFFFF0000

	adcResolutionMask  uint32 = 0x00FF0000
	hwRevisionMask     uint32 = 0xFF000000
	adcResolutionShift        = 16
	hwRevisionShift           = 24

	channelIDMask     uint32 = 0x0000000F
	slotIDMask        uint32 = 0x000000F0
	crateIDMask       uint32 = 0x00000F00
	headerLengthMask  uint32 = 0x0001F000
	channelLengthMask uint32 = 0x7FFE0000
	finishCodeMask    uint32 = 0x80000000

	slotIDShift        = 4
	crateIDShift       = 8
	headerLengthShift  = 12
	channelLengthShift = 17
	finishCodeShift    = 31
	outOfRangeShift    = 31

	bit30To16Mask uint32 = 0x7FFF0000
	bit29To16Mask uint32 = 0x3FFF0000
	bit28To16Mask uint32 = 0x1FFF0000
	bit30Mask     uint32 = 0x40000000
	bit31Mask     uint32 = 0x80000000
	bit31To29Mask uint32 = 0xE0000000

	sizeOfRawEvent = 4 // baseline ChannelHeaderLength with no optional payload words.
	sizeOfExtTS    = 2
	sizeOfEneSums  = 4
	sizeOfQDCSums  = 8
)
