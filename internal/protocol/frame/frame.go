// Package frame implements the text tagging protocol carried inside each
// symbolic code: a fixed ordered sequence of optional delimited prefixes,
// one mandatory index tag, then raw payload text.
//
// Wire form, index 0 of a conforming stream:
//
//	[b64:][:z:][::f::<filename>::/f::]::c<i>::<payload>
//
// Every later frame carries only the index tag and payload. Decoding is a
// single forward scan over byte offsets; the payload is never searched.
package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire delimiters. The text-safe payload alphabet (base64) cannot produce
// the ':' runs these rely on, which is what keeps the grammar unambiguous.
const (
	TagTextEncoded = "b64:"
	TagCompressed  = ":z:"
	TagFileOpen    = "::f::"
	TagFileClose   = "::/f::"
	TagIndexOpen   = "::c"
	TagIndexClose  = "::"
)

var (
	ErrMissingIndexTag      = errors.New("frame: missing index tag")
	ErrUnterminatedFilename = errors.New("frame: unterminated filename header")
	ErrIndexTooLarge        = errors.New("frame: chunk index exceeds limit")
	ErrNegativeIndex        = errors.New("frame: negative chunk index")
	ErrHeaderBeyondFirst    = errors.New("frame: header fields are only legal at index 0")
	ErrFilenameDelimiter    = errors.New("frame: filename contains a header delimiter")
)

// Frame is one decoded (or to-be-encoded) chunk in wire terms.
//
// TextEncoded, Compressed and the filename header are meaningful only at
// index 0; Encode rejects them elsewhere and Decode refuses to trust them
// elsewhere.
type Frame struct {
	Index       int
	Payload     string
	Filename    string
	HasFilename bool
	TextEncoded bool
	Compressed  bool
}

// Limits bounds decode scanning on untrusted input.
type Limits struct {
	MaxFilenameBytes int
	MaxIndexDigits   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFilenameBytes: 255,
		MaxIndexDigits:   9,
	}
}

// Encode serializes a frame in fixed tag order. The payload is appended
// verbatim; no escaping is applied.
func Encode(f Frame) (string, error) {
	if f.Index < 0 {
		return "", ErrNegativeIndex
	}
	if f.Index != 0 && (f.TextEncoded || f.Compressed || f.HasFilename) {
		return "", fmt.Errorf("%w: index %d", ErrHeaderBeyondFirst, f.Index)
	}
	if f.HasFilename && strings.Contains(f.Filename, TagFileClose) {
		return "", ErrFilenameDelimiter
	}

	var b strings.Builder
	b.Grow(len(f.Payload) + len(f.Filename) + 32)
	if f.TextEncoded {
		b.WriteString(TagTextEncoded)
	}
	if f.Compressed {
		b.WriteString(TagCompressed)
	}
	if f.HasFilename {
		b.WriteString(TagFileOpen)
		b.WriteString(f.Filename)
		b.WriteString(TagFileClose)
	}
	b.WriteString(TagIndexOpen)
	b.WriteString(strconv.Itoa(f.Index))
	b.WriteString(TagIndexClose)
	b.WriteString(f.Payload)
	return b.String(), nil
}

// Decode parses frame text with default limits.
func Decode(text string) (Frame, error) {
	return DecodeWithLimits(text, DefaultLimits())
}

// DecodeWithLimits parses frame text. The index tag is the only mandatory
// element; its absence at the expected offset is ErrMissingIndexTag.
//
// Prefixes are consumed tentatively: if the parsed index is not 0, header
// fields in front of the tag are not trusted (a conforming stream never
// puts them there) and their text is folded back into the payload instead.
func DecodeWithLimits(text string, limits Limits) (Frame, error) {
	var f Frame
	i := 0

	if strings.HasPrefix(text[i:], TagTextEncoded) {
		f.TextEncoded = true
		i += len(TagTextEncoded)
	}
	if strings.HasPrefix(text[i:], TagCompressed) {
		f.Compressed = true
		i += len(TagCompressed)
	}
	if strings.HasPrefix(text[i:], TagFileOpen) {
		start := i + len(TagFileOpen)
		end := boundedIndex(text, start, TagFileClose, limits.MaxFilenameBytes)
		if end < 0 {
			return Frame{}, ErrUnterminatedFilename
		}
		f.Filename = text[start:end]
		f.HasFilename = true
		i = end + len(TagFileClose)
	}

	if !strings.HasPrefix(text[i:], TagIndexOpen) {
		return Frame{}, ErrMissingIndexTag
	}
	tagStart := i
	digitStart := i + len(TagIndexOpen)
	j := digitStart
	for j < len(text) && text[j] >= '0' && text[j] <= '9' {
		if j-digitStart >= limits.MaxIndexDigits {
			return Frame{}, ErrIndexTooLarge
		}
		j++
	}
	if j == digitStart || !strings.HasPrefix(text[j:], TagIndexClose) {
		return Frame{}, ErrMissingIndexTag
	}
	index, err := strconv.Atoi(text[digitStart:j])
	if err != nil {
		return Frame{}, ErrMissingIndexTag
	}
	payloadStart := j + len(TagIndexClose)

	if index != 0 && tagStart > 0 {
		// Non-conforming: prefix text on a non-zero frame. Trusting it
		// would corrupt reconstruction, so it stays payload.
		return Frame{
			Index:   index,
			Payload: text[:tagStart] + text[payloadStart:],
		}, nil
	}

	f.Index = index
	f.Payload = text[payloadStart:]
	return f, nil
}

// boundedIndex finds needle in text at or after start, scanning at most
// max bytes of haystack past start. Returns -1 when absent in range.
func boundedIndex(text string, start int, needle string, max int) int {
	stop := start + max + len(needle)
	if stop > len(text) {
		stop = len(text)
	}
	k := strings.Index(text[start:stop], needle)
	if k < 0 {
		return -1
	}
	return start + k
}
