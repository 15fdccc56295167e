package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"golang.org/x/net/ipv4"

	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/restrictnetwork"
)

const (
	multicastTTL       = 16
	udpReadBufferSize  = 1500
	fileReadBufferSize = 64 * 1024
)

func joinMulticastGroupOnAtLeastOneInterface(p *ipv4.PacketConn, listenIP net.IP) error {
	intfs, err := net.Interfaces()
	if err != nil {
		return err
	}

	success := false

	for _, intf := range intfs {
		if (intf.Flags & net.FlagMulticast) != 0 {
			err := p.JoinGroup(&intf, &net.UDPAddr{IP: listenIP})
			if err == nil {
				success = true
			}
		}
	}

	if !success {
		return fmt.Errorf("unable to activate multicast on any network interface")
	}

	return nil
}

// packetConnReader implements io.Reader on top of a net.PacketConn.
type packetConnReader struct {
	net.PacketConn
}

func (r *packetConnReader) Read(p []byte) (int, error) {
	n, _, err := r.PacketConn.ReadFrom(p)
	return n, err
}

// mpegtsSource reads a MPEG-TS stream from a file or from a UDP socket.
type mpegtsSource struct {
	address     string
	readTimeout time.Duration
	parent      logger.Writer

	label   string
	file    *os.File
	pc      net.PacketConn
	r       *mpegts.Reader
	td      *mpegts.TimeDecoder
	tracks  []*Track
	pending []*Packet
}

// Log implements logger.Writer.
func (s *mpegtsSource) Log(level logger.Level, format string, args ...interface{}) {
	s.parent.Log(level, "["+s.label+"] "+format, args...)
}

func (s *mpegtsSource) initialize() error {
	var br *bufio.Reader

	if strings.HasPrefix(s.address, "udp://") {
		s.label = "UDP source"

		addr, err := net.ResolveUDPAddr("udp", s.address[len("udp://"):])
		if err != nil {
			return err
		}

		pc, err := net.ListenPacket(restrictnetwork.Restrict("udp", addr.String()))
		if err != nil {
			return err
		}

		if addr.IP.IsMulticast() {
			p := ipv4.NewPacketConn(pc)

			err = p.SetMulticastTTL(multicastTTL)
			if err != nil {
				pc.Close()
				return err
			}

			err = joinMulticastGroupOnAtLeastOneInterface(p, addr.IP)
			if err != nil {
				pc.Close()
				return err
			}
		}

		s.pc = pc
		br = bufio.NewReaderSize(&packetConnReader{pc}, udpReadBufferSize)
	} else {
		s.label = "file source"

		f, err := os.Open(s.address)
		if err != nil {
			return err
		}

		s.file = f
		br = bufio.NewReaderSize(f, fileReadBufferSize)
	}

	s.setReadDeadline()

	s.r = &mpegts.Reader{R: br}
	err := s.r.Initialize()
	if err != nil {
		s.closeInput()
		return err
	}

	decodeErrLogger := newLimitedLogger(s)

	s.r.OnDecodeError(func(err error) {
		decodeErrLogger.Log(logger.Warn, err.Error())
	})

	s.td = &mpegts.TimeDecoder{}
	s.td.Initialize()

	var unsupportedTracks []int

	for i, track := range s.r.Tracks() {
		tr := &Track{
			ID:        i + 1,
			Codec:     track.Codec,
			ClockRate: 90000,
		}

		switch track.Codec.(type) {
		case *mpegts.CodecH265:
			s.r.OnDataH265(track, func(pts int64, dts int64, au [][]byte) error {
				s.enqueueVideo(tr, pts, dts, au)
				return nil
			})

		case *mpegts.CodecH264:
			s.r.OnDataH264(track, func(pts int64, dts int64, au [][]byte) error {
				s.enqueueVideo(tr, pts, dts, au)
				return nil
			})

		case *mpegts.CodecMPEG4Video, *mpegts.CodecMPEG1Video:
			s.r.OnDataMPEGxVideo(track, func(pts int64, frame []byte) error {
				s.enqueue(tr, pts, [][]byte{frame})
				return nil
			})

		case *mpegts.CodecOpus:
			s.r.OnDataOpus(track, func(pts int64, packets [][]byte) error {
				s.enqueue(tr, pts, packets)
				return nil
			})

		case *mpegts.CodecMPEG4Audio:
			s.r.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
				s.enqueue(tr, pts, aus)
				return nil
			})

		case *mpegts.CodecMPEG1Audio:
			s.r.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
				s.enqueue(tr, pts, frames)
				return nil
			})

		case *mpegts.CodecAC3:
			s.r.OnDataAC3(track, func(pts int64, frame []byte) error {
				s.enqueue(tr, pts, [][]byte{frame})
				return nil
			})

		case *mpegts.CodecKLV:
			s.r.OnDataKLV(track, func(pts int64, uni []byte) error {
				s.enqueue(tr, pts, [][]byte{uni})
				return nil
			})

		default:
			unsupportedTracks = append(unsupportedTracks, i+1)
			continue
		}

		s.tracks = append(s.tracks, tr)
	}

	if len(s.tracks) == 0 {
		s.closeInput()
		return errNoSupportedTracks
	}

	for _, id := range unsupportedTracks {
		s.Log(logger.Warn, "skipping track %d (unsupported codec)", id)
	}

	return nil
}

func (s *mpegtsSource) enqueue(tr *Track, pts int64, data [][]byte) {
	pts = s.td.Decode(pts)
	s.pending = append(s.pending, &Packet{Track: tr, PTS: pts, DTS: pts, Data: data})
}

func (s *mpegtsSource) enqueueVideo(tr *Track, pts int64, dts int64, data [][]byte) {
	pts = s.td.Decode(pts)
	dts = s.td.Decode(dts)
	s.pending = append(s.pending, &Packet{Track: tr, PTS: pts, DTS: dts, Data: data})
}

func (s *mpegtsSource) setReadDeadline() {
	if s.pc != nil {
		s.pc.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
}

func (s *mpegtsSource) closeInput() {
	if s.file != nil {
		s.file.Close()
	}
	if s.pc != nil {
		s.pc.Close()
	}
}

// Tracks implements Source.
func (s *mpegtsSource) Tracks() []*Track {
	return s.tracks
}

// Metadata implements Source.
func (s *mpegtsSource) Metadata() map[string]string {
	return nil
}

// Read implements Source.
func (s *mpegtsSource) Read() (*Packet, error) {
	for len(s.pending) == 0 {
		s.setReadDeadline()
		err := s.r.Read()
		if err != nil {
			// the demuxer signals the end of a file with its own error
			if errors.Is(err, astits.ErrNoMorePackets) {
				return nil, io.EOF
			}
			return nil, err
		}
	}

	pkt := s.pending[0]
	s.pending = s.pending[1:]
	return pkt, nil
}

// Close implements Source.
func (s *mpegtsSource) Close() {
	s.closeInput()
}
