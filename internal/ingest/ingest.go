// Package ingest contains the pipeline that turns a media source into
// indexed, uploaded segments.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/recorder"
	"github.com/a10y/camerars/internal/recordstore"
	"github.com/a10y/camerars/internal/source"
)

var errNoVideoTrack = errors.New("the stream doesn't contain a video track")

type route int

const (
	routeUnknown route = iota
	routeVideo
	routeAudio
)

// SegmentQueue is the interface of the uploader used by the pipeline.
type SegmentQueue interface {
	Enqueue(fpath string)
}

// Pipeline reads a media source and records it into rolling segments.
//
// The first video track of the source becomes the first elementary
// stream of every segment, the first audio track (if any) the second;
// remaining tracks are dropped. A completed segment is appended to the
// index before it is handed to the uploader, so that a queued upload
// always has its row in place.
type Pipeline struct {
	Source        string
	ReadTimeout   time.Duration
	RecordingsDir string
	RollDuration  time.Duration
	Index         *recordstore.Index
	Uploader      SegmentQueue
	Parent        logger.Writer

	src    source.Source
	rec    *recorder.Recorder
	routes map[*source.Track]route

	videoCount   uint64
	audioCount   uint64
	unknownCount uint64

	err  error
	done chan struct{}
}

// Initialize initializes Pipeline.
func (p *Pipeline) Initialize() error {
	if p.src == nil {
		src, err := source.New(p.Source, p.ReadTimeout, p)
		if err != nil {
			return fmt.Errorf("unable to open %s: %w", p.Source, err)
		}
		p.src = src
	}

	videoTrack, audioTrack := p.pickTracks()
	if videoTrack == nil {
		p.src.Close()
		return errNoVideoTrack
	}

	p.rec = &recorder.Recorder{
		Dir:               p.RecordingsDir,
		RollDuration:      p.RollDuration,
		VideoTrack:        videoTrack,
		AudioTrack:        audioTrack,
		Metadata:          p.src.Metadata(),
		OnSegmentComplete: p.onSegmentComplete,
		Parent:            p,
	}
	err := p.rec.Initialize()
	if err != nil {
		p.src.Close()
		return err
	}

	p.done = make(chan struct{})

	go p.run()

	return nil
}

// Log implements logger.Writer.
func (p *Pipeline) Log(level logger.Level, format string, args ...interface{}) {
	p.Parent.Log(level, "[ingest] "+format, args...)
}

// Close stops the pipeline and finalizes the current segment.
func (p *Pipeline) Close() {
	p.src.Close()
	<-p.done
	p.rec.Close()
}

// Done returns a channel that is closed when the pipeline stops on its own.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the reason the pipeline stopped, or nil when the source
// simply ended. It must not be called before Done is closed.
func (p *Pipeline) Err() error {
	return p.err
}

func (p *Pipeline) pickTracks() (*source.Track, *source.Track) {
	var videoTrack, audioTrack *source.Track

	p.routes = make(map[*source.Track]route)

	for _, track := range p.src.Tracks() {
		switch {
		case track.IsVideo() && videoTrack == nil:
			videoTrack = track
			p.routes[track] = routeVideo

		case track.IsAudio() && audioTrack == nil:
			audioTrack = track
			p.routes[track] = routeAudio

		default:
			p.Log(logger.Warn, "ignoring track %d (%s)", track.ID, track.CodecName())
		}
	}

	return videoTrack, audioTrack
}

func (p *Pipeline) onSegmentComplete(fpath string, start time.Time, duration time.Duration) error {
	err := p.Index.Append(context.Background(), recordstore.FileEntry{
		ID:       filepath.Base(fpath),
		Start:    start,
		Duration: duration.Round(time.Millisecond).Seconds(),
	})
	if err != nil {
		return fmt.Errorf("unable to index %s: %w", fpath, err)
	}

	p.Uploader.Enqueue(fpath)

	return nil
}

func (p *Pipeline) run() {
	defer close(p.done)
	p.err = p.runInner()
}

func (p *Pipeline) runInner() error {
	for {
		pkt, err := p.src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.Log(logger.Info, "processing statistics: video=%d audio=%d other=%d",
					p.videoCount, p.audioCount, p.unknownCount)
				return nil
			}
			return err
		}

		switch p.routes[pkt.Track] {
		case routeVideo:
			p.videoCount++
			err = p.rec.WriteVideo(pkt)

		case routeAudio:
			p.audioCount++
			err = p.rec.WriteAudio(pkt)

		default:
			p.unknownCount++
		}
		if err != nil {
			return err
		}
	}
}
