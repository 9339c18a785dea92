// Package pipeline turns raw file bytes into one transportable text blob
// and back. Forward: optional zip container (which keeps the original
// filename inside the blob), then a text-safe base64 transform whenever the
// bytes are not printable text. Reverse undoes the two in opposite order.
package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
)

// Flags records which transforms produced the blob. They travel on the
// first frame of the wire stream.
type Flags struct {
	Compressed  bool
	TextEncoded bool
	// FilenameInBlob marks that the blob alone can recover the original
	// filename (the zip container stores it), so a decode session without
	// a frame header or operator override can still finish.
	FilenameInBlob bool
}

// ErrorKind classifies fatal reverse-transform failures.
type ErrorKind int

const (
	KindCorruptEncoding ErrorKind = iota
	KindCorruptArchive
)

func (k ErrorKind) String() string {
	switch k {
	case KindCorruptEncoding:
		return "corrupt_encoding"
	case KindCorruptArchive:
		return "corrupt_archive"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a fatal pipeline failure. Decode aborts on it; nothing partial
// is ever written.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// sniffLen bounds the binary sniff, same window the content inspection
// tools use.
const sniffLen = 1024

// archiveFallbackName is used when a payload has no filename to store in
// the container.
const archiveFallbackName = "payload"

// Prepare produces the sliceable blob for raw file bytes. filename is the
// source path; only its base name is retained. compress wraps the bytes in
// a deflate zip container first.
func Prepare(raw []byte, filename string, compress bool) (string, Flags, error) {
	var flags Flags
	data := raw

	if compress {
		zipped, err := zipBytes(raw, baseName(filename))
		if err != nil {
			return "", Flags{}, fmt.Errorf("pipeline: compress: %w", err)
		}
		data = zipped
		flags.Compressed = true
		flags.FilenameInBlob = true
	}

	if flags.Compressed || !isText(data) {
		flags.TextEncoded = true
		return base64.StdEncoding.EncodeToString(data), flags, nil
	}
	return string(data), flags, nil
}

// Recover reverses Prepare: text-safe decoding first, then the container.
// It returns the recovered filename; a name stored in the container wins
// over the argument.
func Recover(blob string, flags Flags, filename string) (string, []byte, error) {
	data := []byte(blob)

	if flags.TextEncoded {
		decoded, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return "", nil, &Error{Kind: KindCorruptEncoding, Err: err}
		}
		data = decoded
	}

	if flags.Compressed {
		name, raw, err := unzipBytes(data)
		if err != nil {
			return "", nil, &Error{Kind: KindCorruptArchive, Err: err}
		}
		if name != "" && name != archiveFallbackName {
			filename = name
		}
		return filename, raw, nil
	}
	return filename, data, nil
}

func zipBytes(raw []byte, name string) ([]byte, error) {
	if name == "" {
		name = archiveFallbackName
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	w, err := zw.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unzipBytes(data []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	if len(zr.File) == 0 {
		return "", nil, errors.New("empty archive")
	}
	f := zr.File[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, err
	}
	return f.Name, raw, nil
}

// isText reports whether data is safe to carry as an unencoded text
// payload: valid UTF-8 with no NUL and a low control-character density in
// the sniff window.
func isText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	sample := data
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	if len(sample) == 0 {
		return true
	}
	control := 0
	for _, b := range sample {
		switch {
		case b == 0x00:
			return false
		case b == '\n' || b == '\r' || b == '\t' || b == '\f' || b == '\b':
		case b < 0x20 || b == 0x7f:
			control++
		}
	}
	return float64(control)/float64(len(sample)) < 0.3
}

func baseName(filename string) string {
	if filename == "" {
		return ""
	}
	return filepath.Base(filename)
}
