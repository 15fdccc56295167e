// Package recorder contains the segment recorder.
package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/recordstore"
	"github.com/a10y/camerars/internal/source"
)

// OnSegmentCreateFunc is the prototype of the function passed as OnSegmentCreate.
type OnSegmentCreateFunc = func(path string)

// OnSegmentCompleteFunc is the prototype of the function passed as OnSegmentComplete.
// It is called after the segment file has been closed; returning an error
// aborts the recording.
type OnSegmentCompleteFunc = func(path string, start time.Time, duration time.Duration) error

// Recorder writes incoming packets into fixed-duration MPEG-TS segments.
//
// Every segment is a standalone file with its own PAT and PMT, so that it
// can be played without the segments around it. Segments are rolled on
// video packets only: when the PTS of an incoming video packet is
// RollDuration or more past the first video packet of the current segment,
// the segment is completed and the packet opens the next one.
type Recorder struct {
	Dir               string
	RollDuration      time.Duration
	VideoTrack        *source.Track
	AudioTrack        *source.Track
	Metadata          map[string]string
	OnSegmentCreate   OnSegmentCreateFunc
	OnSegmentComplete OnSegmentCompleteFunc
	Parent            logger.Writer

	timeNow func() time.Time

	lastID         uint64
	currentSegment *segment
}

// Initialize initializes Recorder.
func (r *Recorder) Initialize() error {
	if r.OnSegmentCreate == nil {
		r.OnSegmentCreate = func(string) {
		}
	}
	if r.OnSegmentComplete == nil {
		r.OnSegmentComplete = func(string, time.Time, time.Duration) error {
			return nil
		}
	}
	if r.timeNow == nil {
		r.timeNow = time.Now
	}

	err := os.MkdirAll(r.Dir, 0o755)
	if err != nil {
		return err
	}

	r.lastID = recordstore.LastID(r.Dir)

	r.Log(logger.Info, "recording %s into %s", r.tracksInfo(), r.Dir)

	if len(r.Metadata) != 0 {
		for key, value := range r.Metadata {
			r.Log(logger.Info, "source metadata: %s=%q", key, value)
		}
	}

	r.currentSegment, err = r.createSegment()
	if err != nil {
		return err
	}

	return nil
}

// Log implements logger.Writer.
func (r *Recorder) Log(level logger.Level, format string, args ...interface{}) {
	r.Parent.Log(level, "[recorder] "+format, args...)
}

// Close finalizes the current segment and stops the recorder.
// The trailing segment stays on disk but is not reported through
// OnSegmentComplete, since it was cut short.
func (r *Recorder) Close() {
	r.Log(logger.Info, "recording stopped")

	err := r.currentSegment.close()
	if err != nil {
		r.Log(logger.Error, "unable to close segment %s: %s", r.currentSegment.path, err)
	}
}

// WriteVideo writes a video packet, rolling the segment when needed.
func (r *Recorder) WriteVideo(pkt *source.Packet) error {
	ptsDur := timestampToDuration(pkt.PTS, r.VideoTrack.ClockRate)

	if r.currentSegment.hasVideo && (ptsDur-r.currentSegment.videoStart) >= r.RollDuration {
		// the boundary packet belongs to the next segment; close the
		// current one at the boundary so that durations tile exactly.
		r.currentSegment.videoEnd = ptsDur

		err := r.closeCurrentSegment()
		if err != nil {
			return err
		}

		r.currentSegment, err = r.createSegment()
		if err != nil {
			return err
		}
	}

	return r.currentSegment.writeVideo(pkt, ptsDur)
}

// WriteAudio writes an audio packet into the current segment.
func (r *Recorder) WriteAudio(pkt *source.Packet) error {
	return r.currentSegment.writeAudio(pkt)
}

func (r *Recorder) createSegment() (*segment, error) {
	r.lastID++

	seg := &segment{
		path:       filepath.Join(r.Dir, recordstore.SegmentName(r.lastID)),
		videoTrack: r.VideoTrack,
		audioTrack: r.AudioTrack,
		startNTP:   r.timeNow(),
	}

	err := seg.initialize()
	if err != nil {
		return nil, err
	}

	r.Log(logger.Debug, "created segment %s", seg.path)
	r.OnSegmentCreate(seg.path)

	return seg, nil
}

func (r *Recorder) closeCurrentSegment() error {
	seg := r.currentSegment

	err := seg.close()
	if err != nil {
		return err
	}

	r.Log(logger.Debug, "closed segment %s", seg.path)

	return r.OnSegmentComplete(seg.path, seg.startNTP, seg.duration(r.RollDuration))
}

func (r *Recorder) tracksInfo() string {
	var parts []string

	parts = append(parts, "video track ("+r.VideoTrack.CodecName()+")")

	if r.AudioTrack != nil {
		parts = append(parts, "audio track ("+r.AudioTrack.CodecName()+")")
	}

	return strings.Join(parts, ", ")
}
