package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/stretchr/testify/require"

	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/recordstore"
	"github.com/a10y/camerars/internal/source"
	"github.com/a10y/camerars/internal/test"
)

type fakeSource struct {
	tracks   []*source.Track
	packets  []*source.Packet
	metadata map[string]string

	pos    int
	closed bool
}

func (s *fakeSource) Tracks() []*source.Track {
	return s.tracks
}

func (s *fakeSource) Read() (*source.Packet, error) {
	if s.pos >= len(s.packets) {
		return nil, io.EOF
	}
	pkt := s.packets[s.pos]
	s.pos++
	return pkt, nil
}

func (s *fakeSource) Metadata() map[string]string {
	return s.metadata
}

func (s *fakeSource) Close() {
	s.closed = true
}

type fakeQueue struct {
	mu    sync.Mutex
	paths []string
}

func (q *fakeQueue) Enqueue(fpath string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paths = append(q.paths, fpath)
}

type logCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *logCollector) writer() logger.Writer {
	return test.Logger(func(_ logger.Level, format string, args ...interface{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, fmt.Sprintf(format, args...))
	})
}

func (c *logCollector) contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

func videoAccessUnit(i byte) [][]byte {
	return [][]byte{
		test.FormatH264.SPS,
		test.FormatH264.PPS,
		{5, i}, // IDR
	}
}

func segmentTrackCounts(t *testing.T, fpath string) ([]*mpegts.Track, map[int]int) {
	byts, err := os.ReadFile(fpath)
	require.NoError(t, err)

	r := &mpegts.Reader{R: bytes.NewReader(byts)}
	err = r.Initialize()
	require.NoError(t, err)

	counts := make(map[int]int)

	for i, track := range r.Tracks() {
		switch track.Codec.(type) {
		case *mpegts.CodecH264:
			r.OnDataH264(track, func(_ int64, _ int64, _ [][]byte) error {
				counts[i]++
				return nil
			})

		case *mpegts.CodecMPEG4Audio:
			r.OnDataMPEG4Audio(track, func(_ int64, _ [][]byte) error {
				counts[i]++
				return nil
			})
		}
	}

	for {
		err = r.Read()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	return r.Tracks(), counts
}

func TestPipelineRouting(t *testing.T) {
	// the video track is declared last; it must still end up
	// as the first elementary stream of the output.
	audioTrack := &source.Track{
		ID: 1,
		Codec: &mpegts.CodecMPEG4Audio{
			Config: mpeg4audio.AudioSpecificConfig{
				Type:         mpeg4audio.ObjectTypeAACLC,
				SampleRate:   48000,
				ChannelCount: 2,
			},
		},
		ClockRate: 90000,
	}
	dataTrack := &source.Track{ID: 2, Codec: &mpegts.CodecKLV{Synchronous: true}, ClockRate: 90000}
	videoTrack := &source.Track{ID: 3, Codec: &mpegts.CodecH264{}, ClockRate: 90000}

	var packets []*source.Packet
	for i := int64(0); i < 10; i++ {
		pts := i * 3000
		packets = append(packets,
			&source.Packet{Track: audioTrack, PTS: pts, DTS: pts, Data: [][]byte{{1, 2, byte(i)}}},
			&source.Packet{Track: dataTrack, PTS: pts, DTS: pts, Data: [][]byte{{4, 5, byte(i)}}},
			&source.Packet{Track: videoTrack, PTS: pts, DTS: pts, Data: videoAccessUnit(byte(i))},
		)
	}

	index, err := recordstore.OpenMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	dir := filepath.Join(t.TempDir(), "recordings")
	queue := &fakeQueue{}
	logs := &logCollector{}

	p := &Pipeline{
		RecordingsDir: dir,
		RollDuration:  10 * time.Second,
		Index:         index,
		Uploader:      queue,
		Parent:        logs.writer(),
		src: &fakeSource{
			tracks:   []*source.Track{audioTrack, dataTrack, videoTrack},
			packets:  packets,
			metadata: map[string]string{"title": "test stream"},
		},
	}
	err = p.Initialize()
	require.NoError(t, err)

	<-p.Done()
	require.NoError(t, p.Err())
	p.Close()

	require.True(t, logs.contains("processing statistics: video=10 audio=10 other=10"))
	require.True(t, logs.contains("ignoring track 2 (KLV)"))
	require.True(t, logs.contains("title"))

	// no roll happened: one partial segment, nothing indexed or enqueued
	entries, err := index.Query(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 0, len(entries))
	require.Equal(t, 0, len(queue.paths))

	tracks, counts := segmentTrackCounts(t, filepath.Join(dir, "000000001.ts"))
	require.Equal(t, 2, len(tracks))
	require.IsType(t, &mpegts.CodecH264{}, tracks[0].Codec)
	require.IsType(t, &mpegts.CodecMPEG4Audio{}, tracks[1].Codec)
	require.Equal(t, 10, counts[1])
	require.GreaterOrEqual(t, counts[0], 9)
}

func TestPipelineIndexMatchesFiles(t *testing.T) {
	videoTrack := &source.Track{ID: 1, Codec: &mpegts.CodecH264{}, ClockRate: 90000}

	// 0.5s steps with a 1s roll duration: rolls at 1s, 2s and 3s
	var packets []*source.Packet
	for i := int64(0); i <= 6; i++ {
		pts := i * 45000
		packets = append(packets, &source.Packet{
			Track: videoTrack,
			PTS:   pts,
			DTS:   pts,
			Data:  videoAccessUnit(byte(i)),
		})
	}

	index, err := recordstore.OpenMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	dir := filepath.Join(t.TempDir(), "recordings")
	queue := &fakeQueue{}

	p := &Pipeline{
		RecordingsDir: dir,
		RollDuration:  1 * time.Second,
		Index:         index,
		Uploader:      queue,
		Parent:        test.NilLogger,
		src: &fakeSource{
			tracks:  []*source.Track{videoTrack},
			packets: packets,
		},
	}
	err = p.Initialize()
	require.NoError(t, err)

	<-p.Done()
	require.NoError(t, p.Err())
	p.Close()

	// segments are enqueued in completion order
	require.Equal(t, []string{
		filepath.Join(dir, "000000001.ts"),
		filepath.Join(dir, "000000002.ts"),
		filepath.Join(dir, "000000003.ts"),
	}, queue.paths)

	// every indexed row corresponds to a completed file on disk
	entries, err := index.Query(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, len(entries))

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
		require.Equal(t, 1.0, e.Duration)
		_, err = os.Stat(filepath.Join(dir, e.ID))
		require.NoError(t, err)
	}
	require.ElementsMatch(t, []string{"000000001.ts", "000000002.ts", "000000003.ts"}, ids)

	// the trailing partial is on disk but not indexed
	_, err = os.Stat(filepath.Join(dir, "000000004.ts"))
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 4, len(files))
}

func TestPipelineNoVideoTrack(t *testing.T) {
	audioTrack := &source.Track{
		ID: 1,
		Codec: &mpegts.CodecMPEG4Audio{
			Config: mpeg4audio.AudioSpecificConfig{
				Type:         mpeg4audio.ObjectTypeAACLC,
				SampleRate:   48000,
				ChannelCount: 2,
			},
		},
		ClockRate: 90000,
	}

	index, err := recordstore.OpenMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	src := &fakeSource{tracks: []*source.Track{audioTrack}}

	p := &Pipeline{
		RecordingsDir: filepath.Join(t.TempDir(), "recordings"),
		RollDuration:  1 * time.Second,
		Index:         index,
		Uploader:      &fakeQueue{},
		Parent:        test.NilLogger,
		src:           src,
	}
	err = p.Initialize()
	require.ErrorIs(t, err, errNoVideoTrack)
	require.True(t, src.closed)
}

func TestPipelineDurationRounding(t *testing.T) {
	index, err := recordstore.OpenMemoryIndex()
	require.NoError(t, err)
	defer index.Close()

	queue := &fakeQueue{}

	p := &Pipeline{
		Index:    index,
		Uploader: queue,
		Parent:   test.NilLogger,
	}

	start := time.Date(2025, time.May, 12, 10, 30, 0, 0, time.UTC)

	err = p.onSegmentComplete("recordings/000000007.ts", start, 1000400*time.Microsecond)
	require.NoError(t, err)

	entries, err := index.Query(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, len(entries))
	require.Equal(t, "000000007.ts", entries[0].ID)
	require.Equal(t, start, entries[0].Start)
	require.Equal(t, 1.0, entries[0].Duration)

	require.Equal(t, []string{"recordings/000000007.ts"}, queue.paths)
}
