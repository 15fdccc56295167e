package recorder

import (
	"bufio"
	"os"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/ac3"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/a10y/camerars/internal/source"
)

const segmentBufferSize = 64 * 1024

func multiplyAndDivide(v, m, d int64) int64 {
	secs := v / d
	dec := v % d
	return (secs*m + dec*m/d)
}

func multiplyAndDivide2(v, m, d time.Duration) time.Duration {
	secs := v / d
	dec := v % d
	return (secs*m + dec*m/d)
}

func timestampToDuration(t int64, clockRate int) time.Duration {
	return multiplyAndDivide2(time.Duration(t), time.Second, time.Duration(clockRate))
}

// segment is a single MPEG-TS file of a recording. It owns its muxer,
// which makes the file playable on its own.
type segment struct {
	path       string
	videoTrack *source.Track
	audioTrack *source.Track
	startNTP   time.Time

	fi         *os.File
	bw         *bufio.Writer
	mw         *mpegts.Writer
	mVideo     *mpegts.Track
	mAudio     *mpegts.Track
	hasVideo   bool
	videoStart time.Duration
	videoEnd   time.Duration
}

func (s *segment) initialize() error {
	fi, err := os.Create(s.path)
	if err != nil {
		return err
	}

	s.fi = fi
	s.bw = bufio.NewWriterSize(fi, segmentBufferSize)

	// the video track is declared first and therefore becomes
	// the first elementary stream of the program.
	s.mVideo = &mpegts.Track{Codec: s.videoTrack.Codec}
	tracks := []*mpegts.Track{s.mVideo}

	if s.audioTrack != nil {
		s.mAudio = &mpegts.Track{Codec: s.audioTrack.Codec}
		tracks = append(tracks, s.mAudio)
	}

	s.mw = &mpegts.Writer{W: s.bw, Tracks: tracks}

	err = s.mw.Initialize()
	if err != nil {
		s.fi.Close()
		return err
	}

	return nil
}

func (s *segment) close() error {
	if s.fi == nil {
		return nil
	}

	err := s.bw.Flush()

	err2 := s.fi.Close()
	if err == nil {
		err = err2
	}

	s.fi = nil

	return err
}

// duration returns the distance between the first video packet and the
// segment end. Segments without video fall back to the nominal duration.
func (s *segment) duration(fallback time.Duration) time.Duration {
	if !s.hasVideo {
		return fallback
	}
	return s.videoEnd - s.videoStart
}

func (s *segment) writeVideo(pkt *source.Packet, ptsDur time.Duration) error {
	clockRate := int64(s.videoTrack.ClockRate)
	pts := multiplyAndDivide(pkt.PTS, 90000, clockRate)
	dts := multiplyAndDivide(pkt.DTS, 90000, clockRate)

	var err error

	switch s.videoTrack.Codec.(type) {
	case *mpegts.CodecH265:
		err = s.mw.WriteH265(s.mVideo, pts, dts, pkt.Data)

	case *mpegts.CodecH264:
		err = s.mw.WriteH264(s.mVideo, pts, dts, pkt.Data)

	case *mpegts.CodecMPEG4Video:
		err = s.mw.WriteMPEG4Video(s.mVideo, pts, pkt.Data[0])

	case *mpegts.CodecMPEG1Video:
		err = s.mw.WriteMPEG1Video(s.mVideo, pts, pkt.Data[0])
	}
	if err != nil {
		return err
	}

	if !s.hasVideo {
		s.hasVideo = true
		s.videoStart = ptsDur
	}
	s.videoEnd = ptsDur

	return nil
}

func (s *segment) writeAudio(pkt *source.Packet) error {
	clockRate := int64(s.audioTrack.ClockRate)
	pts := multiplyAndDivide(pkt.PTS, 90000, clockRate)

	switch s.audioTrack.Codec.(type) {
	case *mpegts.CodecOpus:
		return s.mw.WriteOpus(s.mAudio, pts, pkt.Data)

	case *mpegts.CodecMPEG4Audio:
		return s.mw.WriteMPEG4Audio(s.mAudio, pts, pkt.Data)

	case *mpegts.CodecMPEG1Audio:
		return s.mw.WriteMPEG1Audio(s.mAudio, pts, pkt.Data)

	case *mpegts.CodecAC3:
		for i, frame := range pkt.Data {
			framePTS := pkt.PTS + int64(i)*ac3.SamplesPerFrame

			err := s.mw.WriteAC3(s.mAudio, multiplyAndDivide(framePTS, 90000, clockRate), frame)
			if err != nil {
				return err
			}
		}
		return nil
	}

	return nil
}
