package ldf

import (
	"errors"
	"sort"
	"time"

	"golang.org/x/exp/maps"
)

const (
	vsnHeartbeat  = 6  // spillLength value marking a heartbeat segment, not a module.
	vsnEmptyLen   = 2  // spillLength value marking an empty-module marker.
	vsnWallClock  = 1000
	vsnEndOfSpill = 9999
	vsnMaxModule  = 14 // VSNs below this are real digitizer module slots.
)

// Demux splits one reassembled spill's word stream into per-slot Hit
// queues tagged by spill ID, then produces a single globally
// time-sorted batch per flush (§4.C "Spill demultiplexer").
type Demux struct {
	cfg     ModuleConfig
	log     Logger
	spilID  uint64
	arrival uint64

	leftover map[uint32][]Hit

	// WallClocks accumulates the superheavy wall-clock side channel
	// (VSN 1000) observed across all processed spills.
	WallClocks []time.Time
}

// NewDemux constructs a Demux that resolves module metadata through cfg.
func NewDemux(cfg ModuleConfig, log Logger) *Demux {
	if log == nil {
		log = NopLogger{}
	}
	return &Demux{cfg: cfg, log: log, leftover: make(map[uint32][]Hit)}
}

// Feed decodes one reassembled spill's word stream, queuing decoded
// Hits per slot. fullSpill is the reassembler's §4.B flag for this
// spill; every Hit decoded from it is tagged with that flag.
//
// CorruptEvent and ConfigMiss are both fatal to the batch per §7: Feed
// returns them immediately rather than skipping the offending event.
func (d *Demux) Feed(words []uint32, fullSpill bool) error {
	n := len(words)
	i := 0
	for i < n {
		for i < n && words[i] == tagENDBUFF {
			i++
		}
		if i >= n {
			break
		}
		if i+1 >= n {
			return &ErrCorruptEvent{Reason: "truncated spill segment header"}
		}

		spillLength := words[i]
		vsn := words[i+1]

		switch {
		case spillLength == vsnHeartbeat:
			i += int(spillLength)

		case vsn < vsnMaxModule:
			if spillLength == vsnEmptyLen {
				i += int(spillLength)
				continue
			}
			body := words[i+2 : i+int(spillLength)]
			pos := 0
			for pos < len(body) {
				hit, consumed, err := d.unpackOne(body[pos:])
				if err != nil {
					var corrupt *ErrCorruptEvent
					if errors.As(err, &corrupt) {
						corruptEventsTotal.Inc()
					}
					return err
				}
				hit.arrival = d.arrival
				hit.FullSpill = fullSpill
				d.arrival++
				d.leftover[hit.Slot] = append(d.leftover[hit.Slot], hit)
				pos += consumed
			}
			i += int(spillLength)

		case vsn == vsnWallClock:
			secs := int64(words[i+2]) | int64(words[i+3])<<32
			d.WallClocks = append(d.WallClocks, time.Unix(secs, 0).UTC())
			i += int(spillLength)

		case vsn == vsnEndOfSpill:
			d.spilID++
			return nil

		default:
			d.spilID++
			return &ErrUnexpectedVSN{SpillID: d.spilID, VSN: vsn}
		}
	}
	return nil
}

// unpackOne reads one real on-disk digitizer event out of raw, a
// sub-slice that begins at the event's true first word (§4.C), and
// synthesizes the two prefix words A expects (size, module-info) before
// invoking Unpack — mirroring LDFPixieTranslator::AddDDASWords, which
// inserts the same two words ahead of the real event in the original.
// It returns the decoded Hit and the number of REAL (on-disk) words
// consumed, which is two less than the synthesized event's word count.
func (d *Demux) unpackOne(raw []uint32) (Hit, int, error) {
	var hit Hit
	if len(raw) < 1 {
		return hit, 0, &ErrCorruptEvent{Reason: "truncated module readout"}
	}

	firstWord := raw[0]
	channelLength := (firstWord & channelLengthMask) >> channelLengthShift
	eventLengthWords := int(channelLength) + 2
	realWords := eventLengthWords - 2
	if eventLengthWords < 6 || realWords > len(raw) {
		return hit, 0, &ErrCorruptEvent{Reason: "declared event length out of range"}
	}

	crate := (firstWord & crateIDMask) >> crateIDShift
	slot := (firstWord & slotIDMask) >> slotIDShift
	info, err := d.cfg.Lookup(crate, slot)
	if err != nil {
		return hit, 0, err
	}

	synth := make([]uint32, eventLengthWords)
	synth[0] = uint32(eventLengthWords) * 2
	synth[1] = (info.MSPS & lower16BitMask) |
		((info.ADCResolution << adcResolutionShift) & adcResolutionMask) |
		((info.HardwareRevision << hwRevisionShift) & hwRevisionMask)
	copy(synth[2:], raw[:realWords])

	hit, _, err = Unpack(synth)
	if err != nil {
		return hit, 0, err
	}
	return hit, realWords, nil
}

// Flush sorts every slot's queued hits by time, merges them into one
// globally time-sorted batch, and clears the queues — mirroring
// LDFPixieTranslator::Parse's end-of-run drain of CustomLeftovers.
func (d *Demux) Flush() []Hit {
	slots := maps.Keys(d.leftover)
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	total := 0
	for _, slot := range slots {
		total += len(d.leftover[slot])
	}
	out := make([]Hit, 0, total)

	for _, slot := range slots {
		hits := d.leftover[slot]
		sort.Slice(hits, func(i, j int) bool { return hits[i].Less(&hits[j]) })
		out = append(out, hits...)
		delete(d.leftover, slot)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(&out[j]) })
	hitsPerBatch.Observe(float64(len(out)))
	return out
}

// Pending reports how many slots currently hold queued hits,
// mirroring LDFPixieTranslator::CountBuffersWithData.
func (d *Demux) Pending() int {
	n := 0
	for _, hits := range d.leftover {
		if len(hits) > 0 {
			n++
		}
	}
	return n
}
