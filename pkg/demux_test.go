package ldf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// minimalRawEvent builds a 4-word on-disk channel event (no trailing
// payload or trace, no synthesized prefix words) for the given
// location, with timeLow as its only variable field. This is the wire
// shape Demux.Feed actually walks: the real first word carries
// crate/slot/channel/header-length/channel-length, and the two A-level
// prefix words (size, module-info) do not exist on disk — Feed
// synthesizes them per §4.C.
func minimalRawEvent(crate, slot, channel, timeLow uint32) []uint32 {
	channelLength := uint32(sizeOfRawEvent) // headerLen(4) + traceLength/2(0)
	word0 := channel | (slot << slotIDShift) | (crate << crateIDShift) |
		(sizeOfRawEvent << headerLengthShift) | (channelLength << channelLengthShift)
	return []uint32{word0, timeLow, 0, 0}
}

func testConfig(entries ...struct {
	crate, slot, msps uint32
}) ModuleConfig {
	cfg := ModuleConfig{}
	for _, e := range entries {
		cfg[ModuleKey{Crate: e.crate, Slot: e.slot}] = ModuleInfo{MSPS: e.msps, ADCResolution: 14, HardwareRevision: 1}
	}
	return cfg
}

func TestDemuxFeedRegularModuleAndFlush(t *testing.T) {
	cfg := testConfig(struct{ crate, slot, msps uint32 }{0, 5, 100})
	d := NewDemux(cfg, nil)

	event := minimalRawEvent(0, 5, 0, 10)
	segment := append([]uint32{uint32(2 + len(event)), 3}, event...)
	segment = append(segment, 2, vsnEndOfSpill)

	assert.NoError(t, d.Feed(segment, true))
	assert.Equal(t, 1, d.Pending())

	hits := d.Flush()
	assert.Len(t, hits, 1)
	assert.Equal(t, uint32(5), hits[0].Slot)
	assert.True(t, hits[0].FullSpill)
	assert.Equal(t, 0, d.Pending())
}

func TestDemuxFeedTagsPartialSpill(t *testing.T) {
	cfg := testConfig(struct{ crate, slot, msps uint32 }{0, 5, 100})
	d := NewDemux(cfg, nil)

	event := minimalRawEvent(0, 5, 0, 10)
	segment := append([]uint32{uint32(2 + len(event)), 3}, event...)
	segment = append(segment, 2, vsnEndOfSpill)

	assert.NoError(t, d.Feed(segment, false))
	hits := d.Flush()
	assert.Len(t, hits, 1)
	assert.False(t, hits[0].FullSpill)
}

func TestDemuxFeedMissingModuleConfigPropagates(t *testing.T) {
	d := NewDemux(nil, nil)

	event := minimalRawEvent(0, 5, 0, 10)
	segment := append([]uint32{uint32(2 + len(event)), 3}, event...)
	segment = append(segment, 2, vsnEndOfSpill)

	err := d.Feed(segment, true)
	assert.Error(t, err)
	var missing *ErrConfigMiss
	assert.ErrorAs(t, err, &missing)
}

func TestDemuxHeartbeatSkipped(t *testing.T) {
	d := NewDemux(nil, nil)
	segment := []uint32{vsnHeartbeat, 0, 0, 0, 0, 0}
	segment = append(segment, 2, vsnEndOfSpill)
	assert.NoError(t, d.Feed(segment, true))
	assert.Equal(t, 0, d.Pending())
}

func TestDemuxEmptyModuleMarkerSkipped(t *testing.T) {
	d := NewDemux(nil, nil)
	segment := []uint32{vsnEmptyLen, 3, 2, vsnEndOfSpill}
	assert.NoError(t, d.Feed(segment, true))
	assert.Equal(t, 0, d.Pending())
}

func TestDemuxUnexpectedVSN(t *testing.T) {
	d := NewDemux(nil, nil)
	segment := []uint32{4, 20000, 0, 0}
	err := d.Feed(segment, true)
	assert.Error(t, err)
	var bad *ErrUnexpectedVSN
	assert.ErrorAs(t, err, &bad)
}

func TestDemuxWallClock(t *testing.T) {
	d := NewDemux(nil, nil)
	segment := []uint32{4, vsnWallClock, 1700000000, 0}
	segment = append(segment, 2, vsnEndOfSpill)
	assert.NoError(t, d.Feed(segment, true))
	assert.Len(t, d.WallClocks, 1)
	assert.Equal(t, int64(1700000000), d.WallClocks[0].Unix())
}

func TestDemuxFlushOrdersGloballyByTime(t *testing.T) {
	cfg := testConfig(
		struct{ crate, slot, msps uint32 }{0, 2, 100},
		struct{ crate, slot, msps uint32 }{0, 1, 100},
	)
	d := NewDemux(cfg, nil)

	late := minimalRawEvent(0, 2, 0, 900000)  // large coarse time
	early := minimalRawEvent(0, 1, 0, 100)    // small coarse time

	seg1 := append([]uint32{uint32(2 + len(late)), 3}, late...)
	seg1 = append(seg1, 2, vsnEndOfSpill)
	assert.NoError(t, d.Feed(seg1, true))

	seg2 := append([]uint32{uint32(2 + len(early)), 4}, early...)
	seg2 = append(seg2, 2, vsnEndOfSpill)
	assert.NoError(t, d.Feed(seg2, true))

	hits := d.Flush()
	assert.Len(t, hits, 2)
	assert.True(t, hits[0].TimeNs <= hits[1].TimeNs)
	assert.Equal(t, uint32(1), hits[0].Slot)
	assert.Equal(t, uint32(2), hits[1].Slot)
}
