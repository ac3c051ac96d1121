package ldf

import (
	"fmt"
	"io"
	"os"
	"time"
)

// SequencerState mirrors ReassemblerState at the file-sequencing level:
// SeqReceiving while spills are still arriving, SeqComplete once
// every input file has hit double-EOF, SeqAbort on an unrecoverable
// framing error.
type SequencerState int

const (
	SeqReceiving SequencerState = iota
	SeqComplete
	SeqAbort
)

// Sequencer drives a Reassembler and Demux across an ordered list of
// LDF files, parsing each file's DIR/HEAD prefix before handing its
// DATA buffers to the reassembler (§4.D "File sequencer").
type Sequencer struct {
	files   []string
	cfg     ModuleConfig
	log     Logger
	fileIdx int

	cur   *os.File
	rs    *Reassembler
	demux *Demux

	runNumber uint32
	head      headBody

	goodChunks, missingChunks uint64
	spillsParsed              uint64
}

// NewSequencer constructs a Sequencer over files, processed in order.
func NewSequencer(files []string, cfg ModuleConfig, log Logger) *Sequencer {
	if log == nil {
		log = NopLogger{}
	}
	return &Sequencer{
		files: files,
		cfg:   cfg,
		log:   log,
		demux: NewDemux(cfg, log),
	}
}

// RunNumber and Head report the most recently parsed file's prefix
// buffers.
func (s *Sequencer) RunNumber() uint32 { return s.runNumber }
func (s *Sequencer) Head() headBody    { return s.head }

func (s *Sequencer) openNextFile() (bool, error) {
	if s.fileIdx >= len(s.files) {
		return false, nil
	}
	if s.cur != nil {
		s.cur.Close()
	}
	filename := s.files[s.fileIdx]
	s.fileIdx++

	f, err := os.Open(filename)
	if err != nil {
		return false, &ErrOpenFile{Filename: filename, Err: err}
	}
	runNumber, err := readDirBuffer(f, filename)
	if err != nil {
		f.Close()
		return false, err
	}
	// DIR and HEAD each occupy a full fixed-size buffer slot on disk;
	// seek past the unread padding to the next buffer's tag word,
	// mirroring LDFPixieTranslator's seek-to-absolute-offset approach.
	if _, err := f.Seek(fileBufferWords*4, io.SeekStart); err != nil {
		f.Close()
		return false, err
	}
	head, err := readHeadBuffer(f, filename)
	if err != nil {
		f.Close()
		return false, err
	}
	if _, err := f.Seek(2*fileBufferWords*4, io.SeekStart); err != nil {
		f.Close()
		return false, err
	}
	s.cur = f
	s.runNumber = runNumber
	s.head = head
	s.rs = NewReassembler(f, s.log)
	return true, nil
}

// Next advances the sequencer by one spill: it feeds the spill's words
// to the demultiplexer and returns the state transition. Callers drive
// Next in a loop, calling Flush whenever they want the hits queued so
// far (e.g. after a set number of spills).
func (s *Sequencer) Next() (SequencerState, error) {
	for {
		if s.rs == nil {
			opened, err := s.openNextFile()
			if err != nil {
				return SeqAbort, err
			}
			if !opened {
				return SeqComplete, nil
			}
		}

		spill, state, err := s.rs.Next()
		switch state {
		case StateComplete:
			if spill.Words == nil {
				// Double-EOF on the current file: advance to the next one.
				s.goodChunks += s.rs.GoodChunks()
				s.missingChunks += s.rs.MissingChunks()
				s.rs = nil
				opened, openErr := s.openNextFile()
				if openErr != nil {
					return SeqAbort, openErr
				}
				if !opened {
					return SeqComplete, nil
				}
				continue
			}
			if err := s.demux.Feed(spill.Words, spill.FullSpill); err != nil {
				return SeqAbort, err
			}
			s.spillsParsed++
			return SeqReceiving, nil

		case StateAbort:
			if err != nil {
				return SeqAbort, err
			}
			// Chunk reorder or bad footer size: the reassembler already
			// rotated past the bad chunk, so keep driving rather than
			// aborting the whole run.
			continue

		default:
			if err != nil {
				return SeqAbort, err
			}
			if err == io.EOF {
				return SeqComplete, nil
			}
		}
	}
}

// Flush returns every Hit queued so far, globally time-sorted, and
// clears the queues.
func (s *Sequencer) Flush() []Hit { return s.demux.Flush() }

// Pending reports how many module slots currently hold queued hits.
func (s *Sequencer) Pending() int { return s.demux.Pending() }

// WallClocks returns the superheavy wall-clock readings observed so far.
func (s *Sequencer) WallClocks() []time.Time { return s.demux.WallClocks }

// Stats summarizes chunk-level bookkeeping across the run, mirroring
// ~LDFPixieTranslator's end-of-run logging.
type Stats struct {
	GoodChunks    uint64
	MissingChunks uint64
	SpillsParsed  uint64
	PendingSlots  int
}

func (s *Sequencer) Stats() Stats {
	goodChunks, missingChunks := s.goodChunks, s.missingChunks
	if s.rs != nil {
		goodChunks += s.rs.GoodChunks()
		missingChunks += s.rs.MissingChunks()
	}
	return Stats{
		GoodChunks:    goodChunks,
		MissingChunks: missingChunks,
		SpillsParsed:  s.spillsParsed,
		PendingSlots:  s.demux.Pending(),
	}
}

// Close releases the current file handle and logs a warning if any
// slot still holds undrained hits, mirroring
// ~LDFPixieTranslator's leftover-queue warning.
func (s *Sequencer) Close() error {
	if pending := s.demux.Pending(); pending > 0 {
		s.log.Error(fmt.Sprintf("closing sequencer with %d slots still holding undrained hits", pending), "sequencer")
	}
	if s.cur != nil {
		return s.cur.Close()
	}
	return nil
}
