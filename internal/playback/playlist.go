package playback

import (
	"bytes"
	"strconv"
)

// PlaylistKind selects the variant of a generated playlist.
type PlaylistKind int

// playlist kinds.
const (
	PlaylistVOD PlaylistKind = iota
	PlaylistLive
)

// PlaylistFile is an entry of a Playlist.
type PlaylistFile struct {
	ID       string
	Duration float64 // seconds
}

// Playlist is a HLS media playlist.
type Playlist struct {
	Kind           PlaylistKind
	TargetDuration int
	Files          []PlaylistFile
}

// Marshal encodes the playlist in M3U8 format.
// Lines are CRLF-terminated; durations are serialized in their
// shortest decimal form.
func (p Playlist) Marshal() []byte {
	var buf bytes.Buffer

	writeLine := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\r\n")
	}

	writeLine("#EXTM3U")
	if p.Kind == PlaylistVOD {
		writeLine("#EXT-X-PLAYLIST-TYPE:VOD")
	}
	writeLine("#EXT-X-TARGETDURATION:" + strconv.Itoa(p.TargetDuration))
	writeLine("#EXT-X-VERSION:4")
	writeLine("#EXT-X-MEDIA-SEQUENCE:1")
	writeLine("")

	for _, f := range p.Files {
		writeLine("#EXTINF:" + strconv.FormatFloat(f.Duration, 'f', -1, 64))
		writeLine("files/" + f.ID)
	}

	if p.Kind == PlaylistVOD {
		writeLine("#EXT-X-ENDLIST")
	}

	return buf.Bytes()
}
