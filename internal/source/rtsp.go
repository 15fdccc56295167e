package source

import (
	"errors"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpac3"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtph264"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtph265"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmpeg1audio"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmpeg1video"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmpeg4audio"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmpeg4video"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/pion/rtp"

	"github.com/a10y/camerars/internal/logger"
)

const rtspQueueSize = 512

// rtspSource reads from a RTSP server.
type rtspSource struct {
	address     string
	readTimeout time.Duration
	parent      logger.Writer

	client          *gortsplib.Client
	decodeErrLogger *limitedLogger
	tracks          []*Track
	metadata        map[string]string
	ch              chan *Packet
	readErr         chan error
	done            chan struct{}
}

// Log implements logger.Writer.
func (s *rtspSource) Log(level logger.Level, format string, args ...interface{}) {
	s.parent.Log(level, "[RTSP source] "+format, args...)
}

func (s *rtspSource) initialize() error {
	s.ch = make(chan *Packet, rtspQueueSize)
	s.readErr = make(chan error, 1)
	s.done = make(chan struct{})
	s.decodeErrLogger = newLimitedLogger(s)

	c := &gortsplib.Client{
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.readTimeout,
		OnRequest: func(req *base.Request) {
			s.Log(logger.Debug, "[c->s] %v", req)
		},
		OnResponse: func(res *base.Response) {
			s.Log(logger.Debug, "[s->c] %v", res)
		},
		OnTransportSwitch: func(err error) {
			s.Log(logger.Warn, err.Error())
		},
		OnDecodeError: func(err error) {
			s.decodeErrLogger.Log(logger.Warn, err.Error())
		},
	}

	u, err := base.ParseURL(s.address)
	if err != nil {
		return err
	}

	err = c.Start(u.Scheme, u.Host)
	if err != nil {
		return err
	}

	desc, _, err := c.Describe(u)
	if err != nil {
		c.Close()
		return err
	}

	err = c.SetupAll(desc.BaseURL, desc.Medias)
	if err != nil {
		c.Close()
		return err
	}

	err = s.setupTracks(c, desc.Medias)
	if err != nil {
		c.Close()
		return err
	}

	if desc.Title != "" {
		s.metadata = map[string]string{"title": desc.Title}
	}

	_, err = c.Play(nil)
	if err != nil {
		c.Close()
		return err
	}

	s.client = c

	go func() {
		s.readErr <- c.Wait()
	}()

	return nil
}

func (s *rtspSource) setupTracks(c *gortsplib.Client, medias []*description.Media) error { //nolint:gocognit
	type skippedTrack struct {
		id    int
		codec string
	}

	var skipped []skippedTrack
	n := 0

	for _, medi := range medias {
		for _, forma := range medi.Formats {
			n++

			switch forma := forma.(type) {
			case *format.H265:
				track := &Track{ID: n, Codec: &mpegts.CodecH265{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				proc := &h265Processor{vps: forma.VPS, sps: forma.SPS, pps: forma.PPS}
				var dtsExtractor *h265.DTSExtractor

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					au, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtph265.ErrNonStartingPacketAndNoPrevious) &&
							!errors.Is(err, rtph265.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					au = proc.remux(au)
					if au == nil {
						return
					}

					randomAccess := h265.IsRandomAccess(au)

					if dtsExtractor == nil {
						if !randomAccess {
							return
						}
						dtsExtractor = &h265.DTSExtractor{}
						dtsExtractor.Initialize()
					}

					dts, err := dtsExtractor.Extract(au, pts)
					if err != nil {
						s.decodeErrLogger.Log(logger.Warn, err.Error())
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: dts, Data: au})
				})

				s.tracks = append(s.tracks, track)

			case *format.H264:
				track := &Track{ID: n, Codec: &mpegts.CodecH264{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				proc := &h264Processor{sps: forma.SPS, pps: forma.PPS}
				var dtsExtractor *h264.DTSExtractor

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					au, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtph264.ErrNonStartingPacketAndNoPrevious) &&
							!errors.Is(err, rtph264.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					au = proc.remux(au)
					if au == nil {
						return
					}

					randomAccess := h264.IsRandomAccess(au)

					if dtsExtractor == nil {
						if !randomAccess {
							return
						}
						dtsExtractor = &h264.DTSExtractor{}
						dtsExtractor.Initialize()
					}

					dts, err := dtsExtractor.Extract(au, pts)
					if err != nil {
						s.decodeErrLogger.Log(logger.Warn, err.Error())
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: dts, Data: au})
				})

				s.tracks = append(s.tracks, track)

			case *format.MPEG4Video:
				track := &Track{ID: n, Codec: &mpegts.CodecMPEG4Video{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				firstReceived := false
				var lastPTS int64

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					frame, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtpmpeg4video.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					if !firstReceived {
						firstReceived = true
					} else if pts < lastPTS {
						s.decodeErrLogger.Log(logger.Warn, "MPEG-4 Video streams with B-frames are not supported (yet)")
						return
					}
					lastPTS = pts

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: [][]byte{frame}})
				})

				s.tracks = append(s.tracks, track)

			case *format.MPEG1Video:
				track := &Track{ID: n, Codec: &mpegts.CodecMPEG1Video{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				firstReceived := false
				var lastPTS int64

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					frame, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtpmpeg1video.ErrNonStartingPacketAndNoPrevious) &&
							!errors.Is(err, rtpmpeg1video.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					if !firstReceived {
						firstReceived = true
					} else if pts < lastPTS {
						s.decodeErrLogger.Log(logger.Warn, "MPEG-1 Video streams with B-frames are not supported (yet)")
						return
					}
					lastPTS = pts

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: [][]byte{frame}})
				})

				s.tracks = append(s.tracks, track)

			case *format.Opus:
				track := &Track{
					ID:        n,
					Codec:     &mpegts.CodecOpus{ChannelCount: forma.ChannelCount},
					ClockRate: forma.ClockRate(),
				}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					packet, err := dec.Decode(pkt)
					if err != nil {
						s.decodeErrLogger.Log(logger.Warn, err.Error())
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: [][]byte{packet}})
				})

				s.tracks = append(s.tracks, track)

			case *format.MPEG4Audio:
				track := &Track{
					ID:        n,
					Codec:     &mpegts.CodecMPEG4Audio{Config: *forma.Config},
					ClockRate: forma.ClockRate(),
				}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					aus, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtpmpeg4audio.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: aus})
				})

				s.tracks = append(s.tracks, track)

			case *format.MPEG1Audio:
				track := &Track{ID: n, Codec: &mpegts.CodecMPEG1Audio{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					frames, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtpmpeg1audio.ErrNonStartingPacketAndNoPrevious) &&
							!errors.Is(err, rtpmpeg1audio.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: frames})
				})

				s.tracks = append(s.tracks, track)

			case *format.AC3:
				track := &Track{ID: n, Codec: &mpegts.CodecAC3{}, ClockRate: forma.ClockRate()}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					frames, err := dec.Decode(pkt)
					if err != nil {
						if !errors.Is(err, rtpac3.ErrNonStartingPacketAndNoPrevious) &&
							!errors.Is(err, rtpac3.ErrMorePacketsNeeded) {
							s.decodeErrLogger.Log(logger.Warn, err.Error())
						}
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: frames})
				})

				s.tracks = append(s.tracks, track)

			case *format.KLV:
				track := &Track{
					ID:        n,
					Codec:     &mpegts.CodecKLV{Synchronous: true},
					ClockRate: forma.ClockRate(),
				}

				dec, err := forma.CreateDecoder()
				if err != nil {
					return err
				}

				c.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
					pts, ok := c.PacketPTS2(medi, pkt)
					if !ok {
						return
					}

					uni, err := dec.Decode(pkt)
					if err != nil {
						s.decodeErrLogger.Log(logger.Warn, err.Error())
						return
					}
					if uni == nil {
						return
					}

					s.push(&Packet{Track: track, PTS: pts, DTS: pts, Data: [][]byte{uni}})
				})

				s.tracks = append(s.tracks, track)

			default:
				skipped = append(skipped, skippedTrack{id: n, codec: forma.Codec()})
			}
		}
	}

	if len(s.tracks) == 0 {
		return errNoSupportedTracks
	}

	for _, sk := range skipped {
		s.Log(logger.Warn, "skipping track %d (%s)", sk.id, sk.codec)
	}

	return nil
}

func (s *rtspSource) push(pkt *Packet) {
	select {
	case s.ch <- pkt:
	case <-s.done:
	}
}

// Tracks implements Source.
func (s *rtspSource) Tracks() []*Track {
	return s.tracks
}

// Metadata implements Source.
func (s *rtspSource) Metadata() map[string]string {
	return s.metadata
}

// Read implements Source.
func (s *rtspSource) Read() (*Packet, error) {
	select {
	case pkt := <-s.ch:
		return pkt, nil
	default:
	}

	select {
	case pkt := <-s.ch:
		return pkt, nil
	case err := <-s.readErr:
		return nil, err
	}
}

// Close implements Source.
func (s *rtspSource) Close() {
	close(s.done)
	s.client.Close()
}
