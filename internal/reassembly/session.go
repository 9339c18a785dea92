// Package reassembly accumulates scanned frames in arbitrary arrival order
// and recovers the original file once the operator declares the stream
// complete. Each decode session owns its own buffer; there is no
// process-wide scan state.
//
// Ownership boundary:
// - the index-keyed chunk buffer and its derived progress state
// - duplicate / out-of-order / foreign-frame policy
// - finalization and the reverse pipeline invocation
//
// The protocol has no terminator marker, so completion is always an
// external decision: Finalize is the only door out of Receiving.
package reassembly

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"qrdrive/internal/observability"
	"qrdrive/internal/pipeline"
	"qrdrive/internal/protocol/frame"
)

// State of a decode session.
type State int

const (
	StateEmpty State = iota
	StateReceiving
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReceiving:
		return "receiving"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WarningKind classifies advisory ingest conditions. Warnings never abort
// a session.
type WarningKind int

const (
	WarnDuplicateFrame WarningKind = iota
	WarnOutOfOrder
	WarnForeignFrame
)

func (k WarningKind) String() string {
	switch k {
	case WarnDuplicateFrame:
		return "duplicate_frame"
	case WarnOutOfOrder:
		return "out_of_order"
	case WarnForeignFrame:
		return "foreign_frame"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// Warning is one advisory raised while ingesting a frame.
type Warning struct {
	Kind WarningKind
	// Index is the parsed (or assigned) index of the offending frame.
	Index int
	// Expected is the next contiguous index at the time of arrival; set
	// for WarnOutOfOrder only.
	Expected int
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnDuplicateFrame:
		return fmt.Sprintf("frame %d already stored; duplicate discarded", w.Index)
	case WarnOutOfOrder:
		return fmt.Sprintf("expected frame %d, got %d; stored out of order", w.Expected, w.Index)
	case WarnForeignFrame:
		return fmt.Sprintf("untagged frame stored under arrival index %d; confirm scan order", w.Index)
	default:
		return w.Kind.String()
	}
}

// IngestResult reports what one Ingest call did.
type IngestResult struct {
	// Index the frame was stored (or found) under.
	Index int
	// Accepted is false when the frame was discarded as a duplicate.
	Accepted bool
	Warnings []Warning
}

var (
	ErrSessionFinalized = errors.New("reassembly: session already finalized")
	ErrSessionEmpty     = errors.New("reassembly: no frames ingested")
	// ErrMissingHeader fires when a conforming stream's index-0 frame
	// carries no filename header.
	ErrMissingHeader = errors.New("reassembly: first frame missing filename header")
	// ErrNoFilenameSource fires at finalize when neither a frame header,
	// the archive container, nor the operator supplied a filename.
	ErrNoFilenameSource = errors.New("reassembly: no filename source; supply one")
)

// IncompleteSequenceError lists the exact gaps so the operator can re-scan
// only those codes.
type IncompleteSequenceError struct {
	Missing  []int
	MaxIndex int
}

func (e *IncompleteSequenceError) Error() string {
	return fmt.Sprintf("reassembly: sequence incomplete: missing %v of [0..%d]", e.Missing, e.MaxIndex)
}

// Session is one decode run: Empty until the first accepted frame, then
// Receiving until Finalize. A Session is not safe for concurrent use; one
// scan stream drives it.
type Session struct {
	id    string
	state State

	chunks   map[int]string
	maxSeen  int
	contig   int // highest index of the contiguous run starting at 0, -1 when none
	arrivals int

	filename  string
	hasHeader bool
	flags     pipeline.Flags

	log zerolog.Logger
}

func NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		chunks:  make(map[int]string),
		maxSeen: -1,
		contig:  -1,
		log:     log.With().Str("session", id).Logger(),
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) State() State  { return s.state }
func (s *Session) Frames() int   { return len(s.chunks) }
func (s *Session) MaxIndex() int { return s.maxSeen }

// HighestContiguous reports progress for diagnostics: the top of the
// unbroken run starting at index 0, or -1. It plays no part in completion
// decisions.
func (s *Session) HighestContiguous() int { return s.contig }

// Ingest parses one frame text and stores its chunk. foreign marks a
// stream not produced by this protocol: parse failures then degrade to
// implicit-index payloads instead of aborting.
func (s *Session) Ingest(text string, foreign bool) (IngestResult, error) {
	if s.state == StateFinalized {
		return IngestResult{}, ErrSessionFinalized
	}

	var res IngestResult
	arrival := s.arrivals
	s.arrivals++

	f, err := frame.Decode(text)
	if err != nil {
		if !foreign {
			observability.RecordFrameIngested(observability.OutcomeRejected)
			return IngestResult{}, fmt.Errorf("%w (frame %q)", err, clip(text))
		}
		// Best effort: the whole text becomes the chunk, keyed by
		// arrival order.
		f = frame.Frame{Index: arrival, Payload: text}
		s.addWarning(&res, Warning{Kind: WarnForeignFrame, Index: arrival})
	}
	res.Index = f.Index

	if f.Index == 0 && f.HasFilename {
		if s.filename == "" {
			s.filename = f.Filename
		}
		s.hasHeader = true
	}
	if f.Index == 0 {
		if !foreign && !f.HasFilename {
			observability.RecordFrameIngested(observability.OutcomeRejected)
			return IngestResult{}, fmt.Errorf("%w (frame %q)", ErrMissingHeader, clip(text))
		}
		s.flags = pipeline.Flags{
			Compressed:  f.Compressed,
			TextEncoded: f.TextEncoded,
		}
	}

	if _, exists := s.chunks[f.Index]; exists {
		// First-seen wins; re-scans must be idempotent.
		s.addWarning(&res, Warning{Kind: WarnDuplicateFrame, Index: f.Index})
		observability.RecordFrameIngested(observability.OutcomeDuplicate)
		return res, nil
	}

	if expected := s.contig + 1; f.Index != expected {
		s.addWarning(&res, Warning{Kind: WarnOutOfOrder, Index: f.Index, Expected: expected})
	}

	s.chunks[f.Index] = f.Payload
	if f.Index > s.maxSeen {
		s.maxSeen = f.Index
	}
	for {
		if _, ok := s.chunks[s.contig+1]; !ok {
			break
		}
		s.contig++
	}
	s.state = StateReceiving
	res.Accepted = true

	outcome := observability.OutcomeAccepted
	for _, w := range res.Warnings {
		if w.Kind == WarnForeignFrame {
			outcome = observability.OutcomeForeign
		}
	}
	observability.RecordFrameIngested(outcome)
	s.log.Debug().
		Int("index", f.Index).
		Int("frames", len(s.chunks)).
		Int("contiguous", s.contig).
		Msg("frame stored")
	return res, nil
}

// Finalize declares the stream complete, verifies there are no gaps, and
// runs the reverse pipeline. operatorFilename is used when no frame header
// captured a name; the archive container, when present, outranks both.
func (s *Session) Finalize(operatorFilename string) (string, []byte, error) {
	switch s.state {
	case StateFinalized:
		return "", nil, ErrSessionFinalized
	case StateEmpty:
		return "", nil, ErrSessionEmpty
	}

	var missing []int
	for i := 0; i <= s.maxSeen; i++ {
		if _, ok := s.chunks[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return "", nil, &IncompleteSequenceError{Missing: missing, MaxIndex: s.maxSeen}
	}

	name := s.filename
	if name == "" {
		name = operatorFilename
	}
	if name == "" && !s.flags.Compressed {
		return "", nil, ErrNoFilenameSource
	}

	var blob strings.Builder
	for i := 0; i <= s.maxSeen; i++ {
		blob.WriteString(s.chunks[i])
	}

	outName, raw, err := pipeline.Recover(blob.String(), s.flags, name)
	if err != nil {
		return "", nil, err
	}
	if outName == "" {
		return "", nil, ErrNoFilenameSource
	}

	s.state = StateFinalized
	observability.RecordBytesRecovered(len(raw))
	s.log.Info().
		Str("filename", outName).
		Int("frames", len(s.chunks)).
		Int("bytes", len(raw)).
		Msg("session finalized")
	return outName, raw, nil
}

func (s *Session) addWarning(res *IngestResult, w Warning) {
	res.Warnings = append(res.Warnings, w)
	observability.RecordWarning(w.Kind.String())
	s.log.Warn().
		Str("kind", w.Kind.String()).
		Int("index", w.Index).
		Int("expected", w.Expected).
		Msg(w.String())
}

func clip(text string) string {
	const max = 64
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
