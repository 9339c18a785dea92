package drive

import (
	"context"
	"errors"
	"io"

	"qrdrive/internal/reassembly"
)

// ErrNoCode signals a capture with no detectable code in it. The decode
// loop skips it and waits for the next capture.
var ErrNoCode = errors.New("drive: no code detected")

// Scanner is the optical-decode collaborator: it yields the text content
// of one code per call. io.EOF ends the stream (a file list is exhausted
// or the operator is done scanning).
type Scanner interface {
	NextFrame() (string, error)
}

// Decoder drives one reassembly session from a scan source.
type Decoder struct {
	session *reassembly.Session
	foreign bool
}

// NewDecoder starts a fresh decode session. foreign relaxes parsing for
// streams not produced by this protocol.
func NewDecoder(foreign bool) *Decoder {
	return &Decoder{
		session: reassembly.NewSession(),
		foreign: foreign,
	}
}

func (d *Decoder) Session() *reassembly.Session { return d.session }

// Ingest hands one frame text to the session.
func (d *Decoder) Ingest(text string) (reassembly.IngestResult, error) {
	return d.session.Ingest(text, d.foreign)
}

// Run ingests frames from src until io.EOF. Each NextFrame call may block
// on an interactive capture, so cancellation is checked between frames.
func (d *Decoder) Run(ctx context.Context, src Scanner) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := src.NextFrame()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrNoCode):
			continue
		case err != nil:
			return err
		}
		if _, err := d.session.Ingest(text, d.foreign); err != nil {
			return err
		}
	}
}

// Finalize declares the stream complete and recovers the file.
func (d *Decoder) Finalize(operatorFilename string) (string, []byte, error) {
	return d.session.Finalize(operatorFilename)
}
