package reassembly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrdrive/internal/pipeline"
	"qrdrive/internal/protocol/frame"
	"qrdrive/internal/reassembly"
	"qrdrive/internal/testutil/testlog"
)

// makeFrames runs the encode side by hand: pipeline, slicing, frame texts.
func makeFrames(t *testing.T, raw []byte, filename string, chunkBytes int, compress bool) []string {
	t.Helper()
	blob, flags, err := pipeline.Prepare(raw, filename, compress)
	require.NoError(t, err)

	var frames []string
	for i := 0; i*chunkBytes < len(blob); i++ {
		end := (i + 1) * chunkBytes
		if end > len(blob) {
			end = len(blob)
		}
		f := frame.Frame{Index: i, Payload: blob[i*chunkBytes : end]}
		if i == 0 {
			f.Filename = filename
			f.HasFilename = true
			f.TextEncoded = flags.TextEncoded
			f.Compressed = flags.Compressed
		}
		text, err := frame.Encode(f)
		require.NoError(t, err)
		frames = append(frames, text)
	}
	return frames
}

func TestInOrderRoundTrip(t *testing.T) {
	testlog.Start(t)
	raw := []byte{0x00, 0x10, 0xfe, 0x42, 0x99, 0x01, 0x02, 0x03, 0x04, 0x05}
	frames := makeFrames(t, raw, "blob.bin", 8, false)
	require.Greater(t, len(frames), 1)

	s := reassembly.NewSession()
	assert.Equal(t, reassembly.StateEmpty, s.State())
	for _, text := range frames {
		res, err := s.Ingest(text, false)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Empty(t, res.Warnings)
	}
	assert.Equal(t, reassembly.StateReceiving, s.State())

	name, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, "blob.bin", name)
	assert.Equal(t, raw, out)
	assert.Equal(t, reassembly.StateFinalized, s.State())
}

// Arrival order [2, 0, 1] must produce exactly one out-of-order warning
// (expected 0, got 2) and still finalize to the original bytes.
func TestOutOfOrderArrival(t *testing.T) {
	testlog.Start(t)
	raw := []byte("the quick brown fox jumps over the lazy dog, twice over")
	frames := makeFrames(t, raw, "fox.txt", 20, false)
	require.Len(t, frames, 3)

	s := reassembly.NewSession()

	res, err := s.Ingest(frames[2], false)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reassembly.WarnOutOfOrder, res.Warnings[0].Kind)
	assert.Equal(t, 0, res.Warnings[0].Expected)
	assert.Equal(t, 2, res.Warnings[0].Index)

	res, err = s.Ingest(frames[0], false)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	res, err = s.Ingest(frames[1], false)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	name, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, "fox.txt", name)
	assert.Equal(t, raw, out)
}

func TestOrderIndependence(t *testing.T) {
	testlog.Start(t)
	raw := []byte("order independence means every permutation converges")
	frames := makeFrames(t, raw, "perm.txt", 13, false)
	require.Len(t, frames, 4)

	perms := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range perms {
		s := reassembly.NewSession()
		for _, i := range perm {
			_, err := s.Ingest(frames[i], false)
			require.NoError(t, err)
		}
		_, out, err := s.Finalize("")
		require.NoError(t, err)
		assert.Equal(t, raw, out, "permutation %v", perm)
	}
}

func TestDuplicateFrameIsDiscardedFirstSeenWins(t *testing.T) {
	testlog.Start(t)
	raw := []byte("idempotence under accidental re-scans")
	frames := makeFrames(t, raw, "dup.txt", 16, false)

	s := reassembly.NewSession()
	for _, text := range frames {
		_, err := s.Ingest(text, false)
		require.NoError(t, err)
	}
	before := s.Frames()

	res, err := s.Ingest(frames[1], false)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reassembly.WarnDuplicateFrame, res.Warnings[0].Kind)
	assert.Equal(t, before, s.Frames())

	_, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestFinalizeWithGapListsMissingIndices(t *testing.T) {
	testlog.Start(t)
	raw := []byte("0123456789abcdef0123456789abcdef0123456789abcdef")
	frames := makeFrames(t, raw, "gap.txt", 13, false)
	require.Len(t, frames, 4)

	s := reassembly.NewSession()
	for _, i := range []int{0, 1, 3} {
		_, err := s.Ingest(frames[i], false)
		require.NoError(t, err)
	}

	_, _, err := s.Finalize("")
	var gap *reassembly.IncompleteSequenceError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, []int{2}, gap.Missing)
	assert.Equal(t, 3, gap.MaxIndex)

	// The session stays receiving; the missing scan can still arrive.
	_, err = s.Ingest(frames[2], false)
	require.NoError(t, err)
	_, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestConformingStreamParseFailureIsFatal(t *testing.T) {
	testlog.Start(t)
	s := reassembly.NewSession()
	_, err := s.Ingest("no tags whatsoever", false)
	require.ErrorIs(t, err, frame.ErrMissingIndexTag)
	assert.Equal(t, reassembly.StateEmpty, s.State())
}

func TestConformingIndexZeroWithoutHeaderIsFatal(t *testing.T) {
	testlog.Start(t)
	s := reassembly.NewSession()
	_, err := s.Ingest("::c0::payload with no header", false)
	require.ErrorIs(t, err, reassembly.ErrMissingHeader)
}

func TestForeignStreamBestEffort(t *testing.T) {
	testlog.Start(t)
	s := reassembly.NewSession()

	res, err := s.Ingest("first untagged scan. ", true)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reassembly.WarnForeignFrame, res.Warnings[0].Kind)
	assert.Equal(t, 0, res.Index)

	res, err = s.Ingest("second untagged scan.", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)

	// No header, no archive: the operator must name the output.
	_, _, err = s.Finalize("")
	require.ErrorIs(t, err, reassembly.ErrNoFilenameSource)

	name, out, err := s.Finalize("recovered.txt")
	require.NoError(t, err)
	assert.Equal(t, "recovered.txt", name)
	assert.Equal(t, []byte("first untagged scan. second untagged scan."), out)
}

func TestForeignStreamStillHonorsEmbeddedTags(t *testing.T) {
	testlog.Start(t)
	raw := []byte("tagged frames inside a foreign-mode session parse normally")
	frames := makeFrames(t, raw, "tagged.txt", 20, false)

	s := reassembly.NewSession()
	for _, text := range frames {
		res, err := s.Ingest(text, true)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	}
	name, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, "tagged.txt", name)
	assert.Equal(t, raw, out)
}

func TestCompressedStreamRecoversFilenameFromArchive(t *testing.T) {
	testlog.Start(t)
	raw := []byte("compressed payloads keep their filename inside the container")
	frames := makeFrames(t, raw, "inside.log", 40, true)

	s := reassembly.NewSession()
	for _, text := range frames {
		_, err := s.Ingest(text, false)
		require.NoError(t, err)
	}
	name, out, err := s.Finalize("")
	require.NoError(t, err)
	assert.Equal(t, "inside.log", name)
	assert.Equal(t, raw, out)
}

func TestSessionLifecycleGuards(t *testing.T) {
	testlog.Start(t)
	s := reassembly.NewSession()

	_, _, err := s.Finalize("anything")
	require.ErrorIs(t, err, reassembly.ErrSessionEmpty)

	raw := []byte("tiny")
	for _, text := range makeFrames(t, raw, "tiny.txt", 64, false) {
		_, err := s.Ingest(text, false)
		require.NoError(t, err)
	}
	_, _, err = s.Finalize("")
	require.NoError(t, err)

	_, _, err = s.Finalize("")
	require.ErrorIs(t, err, reassembly.ErrSessionFinalized)
	_, err = s.Ingest("::c9::late", false)
	require.ErrorIs(t, err, reassembly.ErrSessionFinalized)
}

func TestHighestContiguousProgress(t *testing.T) {
	testlog.Start(t)
	raw := []byte("progress reporting for the operator during interactive scans")
	frames := makeFrames(t, raw, "prog.txt", 16, false)
	require.GreaterOrEqual(t, len(frames), 4)

	s := reassembly.NewSession()
	assert.Equal(t, -1, s.HighestContiguous())

	_, err := s.Ingest(frames[3], false)
	require.NoError(t, err)
	assert.Equal(t, -1, s.HighestContiguous())

	_, err = s.Ingest(frames[0], false)
	require.NoError(t, err)
	assert.Equal(t, 0, s.HighestContiguous())

	_, err = s.Ingest(frames[1], false)
	require.NoError(t, err)
	_, err = s.Ingest(frames[2], false)
	require.NoError(t, err)
	assert.Equal(t, 3, s.HighestContiguous())
}
