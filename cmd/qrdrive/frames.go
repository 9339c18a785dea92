package main

import (
	"io"
	"os"

	"qrdrive/internal/drive"
	"qrdrive/internal/layout"
)

// frameFileRenderer stores each frame's text under the stored-image naming
// convention. It is the transport form image renderers consume; plugging a
// real code renderer in replaces only this type.
type frameFileRenderer struct {
	base  string
	ext   string
	index int
}

func (r *frameFileRenderer) RenderCode(text string, _ layout.Plan, _ drive.StyleOptions) error {
	path := drive.StoredImageName(r.base, r.index, r.ext)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return err
	}
	r.index++
	return nil
}

// frameFileScanner replays stored frame texts as an optical scanner would.
type frameFileScanner struct {
	paths []string
	pos   int
}

func (s *frameFileScanner) NextFrame() (string, error) {
	if s.pos >= len(s.paths) {
		return "", io.EOF
	}
	data, err := os.ReadFile(s.paths[s.pos])
	if err != nil {
		return "", err
	}
	s.pos++
	if len(data) == 0 {
		return "", drive.ErrNoCode
	}
	return string(data), nil
}
