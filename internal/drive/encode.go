package drive

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"qrdrive/internal/layout"
	"qrdrive/internal/observability"
	"qrdrive/internal/pipeline"
	"qrdrive/internal/protocol/frame"
)

// StyleOptions are rendering cosmetics passed through to the Renderer
// untouched.
type StyleOptions struct {
	FillColor string
	BackColor string
}

// Renderer draws one code. Implementations live outside this module; the
// core knows nothing about pixel formats.
type Renderer interface {
	RenderCode(frameText string, plan layout.Plan, style StyleOptions) error
}

// Pager lays a full ordered frame list onto pages. Fire and forget; an
// error means inline text could not fit.
type Pager interface {
	LayoutPage(frameTexts []string, plan layout.Plan) error
}

// EncodeRequest describes one encode run.
type EncodeRequest struct {
	Data     []byte
	Filename string
	// OutputName overrides the embedded filename. The source extension is
	// kept so the recovered file type survives the rename.
	OutputName string
	Compress   bool

	Plan layout.Plan
	// ChunkBytes is an explicit operator size; 0 lets the planner decide.
	ChunkBytes     int
	OverrideSafety bool

	Style StyleOptions
}

// Job is a prepared encode run: blob built, capacity planned, nothing
// rendered yet. Callers can inspect it (chunk count, warnings) and confirm
// before committing to output.
type Job struct {
	Name     string
	Flags    pipeline.Flags
	Capacity layout.Capacity

	blob  string
	plan  layout.Plan
	style StyleOptions
}

// PrepareJob runs the payload pipeline and the capacity planner.
func PrepareJob(req EncodeRequest) (*Job, error) {
	blob, flags, err := pipeline.Prepare(req.Data, req.Filename, req.Compress)
	if err != nil {
		return nil, err
	}
	capacity, err := layout.PlanCapacity(req.Plan, req.ChunkBytes, req.OverrideSafety)
	if err != nil {
		return nil, err
	}
	job := &Job{
		Name:     outputName(req.Filename, req.OutputName),
		Flags:    flags,
		Capacity: capacity,
		blob:     blob,
		plan:     req.Plan,
		style:    req.Style,
	}
	log.Info().
		Str("filename", job.Name).
		Int("blob_len", len(blob)).
		Int("chunk_bytes", capacity.ChunkBytes).
		Int("chunks", job.ChunkCount()).
		Bool("compressed", flags.Compressed).
		Bool("text_encoded", flags.TextEncoded).
		Msg("encode job prepared")
	for _, w := range capacity.Warnings {
		log.Warn().Str("kind", w.Kind.String()).Msg(w.String())
	}
	return job, nil
}

func (j *Job) BlobLen() int { return len(j.blob) }

// ChunkCount is ceil(len(blob)/chunkBytes); an empty payload still takes
// one frame to carry the header.
func (j *Job) ChunkCount() int {
	cb := j.Capacity.ChunkBytes
	n := (len(j.blob) + cb - 1) / cb
	if n == 0 {
		n = 1
	}
	return n
}

// Frames builds every frame text. Chunks have no data dependency, so they
// are serialized in parallel; the returned slice is in ascending index
// order regardless.
func (j *Job) Frames(ctx context.Context) ([]string, error) {
	n := j.ChunkCount()
	cb := j.Capacity.ChunkBytes
	frames := make([]string, n)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			start := i * cb
			end := start + cb
			if start > len(j.blob) {
				start = len(j.blob)
			}
			if end > len(j.blob) {
				end = len(j.blob)
			}
			f := frame.Frame{Index: i, Payload: j.blob[start:end]}
			if i == 0 {
				f.TextEncoded = j.Flags.TextEncoded
				f.Compressed = j.Flags.Compressed
				if j.Name != "" {
					f.Filename = j.Name
					f.HasFilename = true
				}
			}
			text, err := frame.Encode(f)
			if err != nil {
				return fmt.Errorf("drive: frame %d: %w", i, err)
			}
			frames[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Render emits every code through the renderer in ascending index order,
// then hands the full ordered list to the pager when paged output was
// requested.
func (j *Job) Render(ctx context.Context, r Renderer, p Pager) error {
	frames, err := j.Frames(ctx)
	if err != nil {
		return err
	}
	for i, text := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RenderCode(text, j.plan, j.style); err != nil {
			return fmt.Errorf("drive: render code %d: %w", i, err)
		}
	}
	if p != nil {
		if err := p.LayoutPage(frames, j.plan); err != nil {
			return fmt.Errorf("drive: page layout: %w", err)
		}
	}
	observability.RecordCodesEncoded(j.plan.Strength.String(), len(frames))
	return nil
}

// outputName resolves the name embedded in the stream. An operator
// override replaces the base name but keeps the source extension.
func outputName(source, override string) string {
	if override == "" {
		if source == "" {
			return ""
		}
		return filepath.Base(source)
	}
	return override + filepath.Ext(filepath.Base(source))
}
