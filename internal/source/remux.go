package source

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// h264Processor tracks H264 parameter sets and normalizes access units
// so that every IDR is preceded by SPS and PPS.
type h264Processor struct {
	sps []byte
	pps []byte
}

func (p *h264Processor) updateParams(au [][]byte) {
	for _, nalu := range au {
		typ := h264.NALUType(nalu[0] & 0x1F)

		switch typ {
		case h264.NALUTypeSPS:
			p.sps = nalu

		case h264.NALUTypePPS:
			p.pps = nalu
		}
	}
}

func (p *h264Processor) remux(au [][]byte) [][]byte {
	p.updateParams(au)

	isKeyFrame := false
	n := 0

	for _, nalu := range au {
		typ := h264.NALUType(nalu[0] & 0x1F)

		switch typ {
		case h264.NALUTypeSPS, h264.NALUTypePPS: // parameters: remove
			continue

		case h264.NALUTypeAccessUnitDelimiter: // AUD: remove
			continue

		case h264.NALUTypeIDR: // key frame
			if !isKeyFrame {
				isKeyFrame = true

				// prepend parameters
				if p.sps != nil && p.pps != nil {
					n += 2
				}
			}
		}
		n++
	}

	if n == 0 {
		return nil
	}

	filteredNALUs := make([][]byte, n)
	i := 0

	if isKeyFrame && p.sps != nil && p.pps != nil {
		filteredNALUs[0] = p.sps
		filteredNALUs[1] = p.pps
		i = 2
	}

	for _, nalu := range au {
		typ := h264.NALUType(nalu[0] & 0x1F)

		switch typ {
		case h264.NALUTypeSPS, h264.NALUTypePPS:
			continue

		case h264.NALUTypeAccessUnitDelimiter:
			continue
		}

		filteredNALUs[i] = nalu
		i++
	}

	return filteredNALUs
}

// h265Processor tracks H265 parameter sets and normalizes access units
// so that every random access unit is preceded by VPS, SPS and PPS.
type h265Processor struct {
	vps []byte
	sps []byte
	pps []byte
}

func (p *h265Processor) updateParams(au [][]byte) {
	for _, nalu := range au {
		typ := h265.NALUType((nalu[0] >> 1) & 0b111111)

		switch typ {
		case h265.NALUType_VPS_NUT:
			p.vps = nalu

		case h265.NALUType_SPS_NUT:
			p.sps = nalu

		case h265.NALUType_PPS_NUT:
			p.pps = nalu
		}
	}
}

func (p *h265Processor) remux(au [][]byte) [][]byte {
	p.updateParams(au)

	isKeyFrame := false
	n := 0

	for _, nalu := range au {
		typ := h265.NALUType((nalu[0] >> 1) & 0b111111)

		switch typ {
		case h265.NALUType_VPS_NUT, h265.NALUType_SPS_NUT, h265.NALUType_PPS_NUT: // parameters: remove
			continue

		case h265.NALUType_AUD_NUT: // AUD: remove
			continue

		case h265.NALUType_IDR_W_RADL, h265.NALUType_IDR_N_LP, h265.NALUType_CRA_NUT: // key frame
			if !isKeyFrame {
				isKeyFrame = true

				// prepend parameters
				if p.vps != nil && p.sps != nil && p.pps != nil {
					n += 3
				}
			}
		}
		n++
	}

	if n == 0 {
		return nil
	}

	filteredNALUs := make([][]byte, n)
	i := 0

	if isKeyFrame && p.vps != nil && p.sps != nil && p.pps != nil {
		filteredNALUs[0] = p.vps
		filteredNALUs[1] = p.sps
		filteredNALUs[2] = p.pps
		i = 3
	}

	for _, nalu := range au {
		typ := h265.NALUType((nalu[0] >> 1) & 0b111111)

		switch typ {
		case h265.NALUType_VPS_NUT, h265.NALUType_SPS_NUT, h265.NALUType_PPS_NUT:
			continue

		case h265.NALUType_AUD_NUT:
			continue
		}

		filteredNALUs[i] = nalu
		i++
	}

	return filteredNALUs
}
