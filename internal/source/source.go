// Package source contains the media sources that feed the pipeline.
package source

import (
	"errors"
	"strings"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/a10y/camerars/internal/logger"
)

var errNoSupportedTracks = errors.New(
	"the stream doesn't contain any supported codec, which are currently " +
		"H265, H264, MPEG-4 Video, MPEG-1/2 Video, Opus, MPEG-4 Audio, MPEG-1 Audio, AC-3, KLV")

// Track is an elementary stream of a source.
type Track struct {
	ID        int // 1-based position among the tracks declared by the source
	Codec     mpegts.Codec
	ClockRate int
}

// IsVideo reports whether the track carries video.
func (t *Track) IsVideo() bool {
	switch t.Codec.(type) {
	case *mpegts.CodecH265, *mpegts.CodecH264, *mpegts.CodecMPEG4Video, *mpegts.CodecMPEG1Video:
		return true
	}
	return false
}

// IsAudio reports whether the track carries audio.
func (t *Track) IsAudio() bool {
	switch t.Codec.(type) {
	case *mpegts.CodecOpus, *mpegts.CodecMPEG4Audio, *mpegts.CodecMPEG1Audio, *mpegts.CodecAC3:
		return true
	}
	return false
}

// CodecName returns the name of the track codec.
func (t *Track) CodecName() string {
	switch t.Codec.(type) {
	case *mpegts.CodecH265:
		return "H265"
	case *mpegts.CodecH264:
		return "H264"
	case *mpegts.CodecMPEG4Video:
		return "MPEG-4 Video"
	case *mpegts.CodecMPEG1Video:
		return "MPEG-1/2 Video"
	case *mpegts.CodecOpus:
		return "Opus"
	case *mpegts.CodecMPEG4Audio:
		return "MPEG-4 Audio"
	case *mpegts.CodecMPEG1Audio:
		return "MPEG-1 Audio"
	case *mpegts.CodecAC3:
		return "AC-3"
	case *mpegts.CodecKLV:
		return "KLV"
	}
	return "unknown"
}

// Packet is a compressed frame demuxed from a source.
// PTS and DTS are expressed in the clock rate of the track.
type Packet struct {
	Track *Track
	PTS   int64
	DTS   int64
	Data  [][]byte
}

// Source is a media input that provides demuxed packets.
//
// Read blocks until a packet is available and returns io.EOF
// when the input ends. Metadata returns descriptive attributes
// of the stream, when the protocol carries any.
type Source interface {
	Tracks() []*Track
	Read() (*Packet, error)
	Metadata() map[string]string
	Close()
}

// New allocates a source suited for the given address.
func New(address string, readTimeout time.Duration, parent logger.Writer) (Source, error) {
	var s interface {
		Source
		initialize() error
	}

	switch {
	case strings.HasPrefix(address, "rtsp://"), strings.HasPrefix(address, "rtsps://"):
		s = &rtspSource{
			address:     address,
			readTimeout: readTimeout,
			parent:      parent,
		}

	default:
		s = &mpegtsSource{
			address:     address,
			readTimeout: readTimeout,
			parent:      parent,
		}
	}

	err := s.initialize()
	if err != nil {
		return nil, err
	}

	return s, nil
}
