package ldf

// Unpack decodes one channel event from words, the word span that
// begins at the event's "event length" word (a count of 16-bit shorts)
// and covers the half as many 32-bit words (§4.A "Bit-field decoder"). It returns the decoded
// Hit and the number of words consumed. words[1] (the "module-info"
// word) carries the MSPS/ADC-resolution/hardware-revision for the
// event; on real wire data this word is synthesized by the upstream
// demultiplexer (§4.C) from a (crate,slot) configuration lookup — A
// itself never looks up module metadata.
//
// Unpack never looks past the declared event length: callers that
// reassemble spills out of fixed-size buffers can safely pass a
// sub-slice that ends exactly there.
func Unpack(words []uint32) (Hit, int, error) {
	var hit Hit

	if len(words) < 6 {
		return hit, 0, &ErrCorruptEvent{Reason: "event shorter than the fixed 6-word header"}
	}

	eventLengthShorts := words[0] & lower16BitMask
	eventLengthWords := int(eventLengthShorts / 2)
	if eventLengthWords < 6 || eventLengthWords > len(words) {
		return hit, 0, &ErrCorruptEvent{Reason: "declared event length out of range"}
	}
	body := words[:eventLengthWords]

	word1 := body[1]
	msps := word1 & lower16BitMask
	adcResolution := (word1 & adcResolutionMask) >> adcResolutionShift
	hwRevision := (word1 & hwRevisionMask) >> hwRevisionShift

	word2 := body[2]
	hit.Channel = word2 & channelIDMask
	hit.Slot = (word2 & slotIDMask) >> slotIDShift
	hit.Crate = (word2 & crateIDMask) >> crateIDShift
	hit.ChannelHeaderLength = (word2 & headerLengthMask) >> headerLengthShift
	hit.ChannelLength = (word2 & channelLengthMask) >> channelLengthShift
	hit.FinishCode = (word2&finishCodeMask)>>finishCodeShift != 0

	hit.ModuleMSPS = msps
	hit.ADCResolution = adcResolution
	hit.HardwareRevision = hwRevision

	hit.TimeLow = body[3]
	hit.TimeHigh = body[4] & lower16BitMask
	hit.CoarseTimeNs = computeCoarseTime(hit.ModuleMSPS, hit.TimeLow, hit.TimeHigh)

	cfdCorrection := parseAndComputeCFD(&hit, body[4])
	hit.TimeNs = float64(hit.CoarseTimeNs) + cfdCorrection

	word6 := body[5]
	hit.ADCOverflowUnderflow = (word6&bit31Mask)>>outOfRangeShift != 0
	hit.TraceLength = (word6 & bit30To16Mask) >> 16
	hit.Energy = word6 & lower16BitMask

	wantChannelLength := hit.ChannelHeaderLength + hit.TraceLength/2
	if hit.ChannelLength != wantChannelLength {
		return hit, 0, &ErrCorruptEvent{
			Crate: hit.Crate, Slot: hit.Slot, Channel: hit.Channel,
			Reason: "channelLength does not match channelHeaderLength + traceLength/2",
		}
	}

	// The declared event length must be exactly the two prefix words plus
	// channelLength, and the trace must fill whole words, so that the
	// payload and trace reads below stay inside body.
	if int(hit.ChannelLength)+2 != eventLengthWords || hit.TraceLength%2 != 0 {
		return hit, 0, &ErrCorruptEvent{
			Crate: hit.Crate, Slot: hit.Slot, Channel: hit.Channel,
			Reason: "channelLength or traceLength does not fit the declared event length",
		}
	}

	payloadWords := hit.ChannelHeaderLength - sizeOfRawEvent
	pos := 6

	switch payloadWords {
	case 0:
	case sizeOfExtTS:
		pos = extractExternalTimestamp(&hit, body, pos)
	case sizeOfEneSums:
		pos = extractEnergySums(&hit, body, pos)
	case sizeOfEneSums + sizeOfExtTS:
		pos = extractEnergySums(&hit, body, pos)
		pos = extractExternalTimestamp(&hit, body, pos)
	case sizeOfQDCSums:
		pos = extractQDCSums(&hit, body, pos)
	case sizeOfQDCSums + sizeOfExtTS:
		pos = extractQDCSums(&hit, body, pos)
		pos = extractExternalTimestamp(&hit, body, pos)
	case sizeOfEneSums + sizeOfQDCSums:
		pos = extractEnergySums(&hit, body, pos)
		pos = extractQDCSums(&hit, body, pos)
	case sizeOfEneSums + sizeOfQDCSums + sizeOfExtTS:
		pos = extractEnergySums(&hit, body, pos)
		pos = extractQDCSums(&hit, body, pos)
		pos = extractExternalTimestamp(&hit, body, pos)
	default:
		return hit, 0, &ErrCorruptEvent{
			Crate: hit.Crate, Slot: hit.Slot, Channel: hit.Channel,
			Reason: "unrecognized channel header length",
		}
	}

	if hit.TraceLength != 0 {
		pos = parseTraceData(&hit, body, pos)
	}

	if pos != eventLengthWords {
		return hit, 0, &ErrCorruptEvent{
			Crate: hit.Crate, Slot: hit.Slot, Channel: hit.Channel,
			Reason: "consumed word count does not match declared event length",
		}
	}

	return hit, eventLengthWords, nil
}

// computeCoarseTime combines the low/high time words into nanoseconds.
// 250 MSPS modules tick at 8ns; every other rate (100, 500) ticks at
// 10ns, per DDASHitUnpacker::computeCoarseTime.
func computeCoarseTime(msps, timeLow, timeHigh uint32) uint64 {
	tstamp := (uint64(timeHigh) << 32) | uint64(timeLow)
	toNanoseconds := uint64(10)
	if msps == 250 {
		toNanoseconds = 8
	}
	return tstamp * toNanoseconds
}

// parseAndComputeCFD decodes the CFD fields from word2 (the third body
// word, which also carries TimeHigh in its low 16 bits) and returns the
// fractional-time correction in nanoseconds, per
// DDASHitUnpacker::parseAndComputeCFD.
func parseAndComputeCFD(hit *Hit, word2 uint32) float64 {
	switch hit.ModuleMSPS {
	case 100:
		hit.CFDFailBit = (word2&bit31Mask)>>31 != 0
		hit.CFDTrigSource = 0
		hit.CFDRaw = (word2 & bit30To16Mask) >> 16
		return (float64(hit.CFDRaw) / 32768.0) * 10.0
	case 250:
		hit.CFDFailBit = (word2&bit31Mask)>>31 != 0
		hit.CFDTrigSource = (word2 & bit30Mask) >> 30
		hit.CFDRaw = (word2 & bit29To16Mask) >> 16
		return (float64(hit.CFDRaw)/16384.0 - float64(hit.CFDTrigSource)) * 4.0
	case 500:
		hit.CFDTrigSource = (word2 & bit31To29Mask) >> 29
		hit.CFDRaw = (word2 & bit28To16Mask) >> 16
		hit.CFDFailBit = hit.CFDTrigSource == 7
		return (float64(hit.CFDRaw)/8192.0 + float64(hit.CFDTrigSource) - 1.0) * 2.0
	default:
		return 0
	}
}

func extractExternalTimestamp(hit *Hit, body []uint32, pos int) int {
	low := uint64(body[pos])
	high := uint64(body[pos+1])
	hit.ExternalTimestamp = (high << 32) | low
	hit.HasExternalTimestamp = true
	return pos + sizeOfExtTS
}

func extractEnergySums(hit *Hit, body []uint32, pos int) int {
	copy(hit.EnergySums[:], body[pos:pos+sizeOfEneSums])
	hit.HasEnergySums = true
	return pos + sizeOfEneSums
}

func extractQDCSums(hit *Hit, body []uint32, pos int) int {
	copy(hit.QDCSums[:], body[pos:pos+sizeOfQDCSums])
	hit.HasQDCSums = true
	return pos + sizeOfQDCSums
}

// parseTraceData unpacks two 16-bit samples per body word: the low
// half first, then the high half, per DDASHitUnpacker::parseTraceData.
func parseTraceData(hit *Hit, body []uint32, pos int) int {
	n := int(hit.TraceLength)
	if cap(hit.Trace) < n {
		hit.Trace = make([]uint16, n)
	} else {
		hit.Trace = hit.Trace[:n]
	}
	for i := 0; i < n; i += 2 {
		word := body[pos]
		pos++
		hit.Trace[i] = uint16(word & lower16BitMask)
		if i+1 < n {
			hit.Trace[i+1] = uint16((word & upper16BitMask) >> 16)
		}
	}
	return pos
}
