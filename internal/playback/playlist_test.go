package playback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaylistMarshalVOD(t *testing.T) {
	pl := Playlist{
		Kind:           PlaylistVOD,
		TargetDuration: 15,
		Files: []PlaylistFile{
			{ID: "A.ts", Duration: 15.16},
			{ID: "B.ts", Duration: 15.16},
		},
	}

	require.Equal(t,
		"#EXTM3U\r\n"+
			"#EXT-X-PLAYLIST-TYPE:VOD\r\n"+
			"#EXT-X-TARGETDURATION:15\r\n"+
			"#EXT-X-VERSION:4\r\n"+
			"#EXT-X-MEDIA-SEQUENCE:1\r\n"+
			"\r\n"+
			"#EXTINF:15.16\r\n"+
			"files/A.ts\r\n"+
			"#EXTINF:15.16\r\n"+
			"files/B.ts\r\n"+
			"#EXT-X-ENDLIST\r\n",
		string(pl.Marshal()))
}

func TestPlaylistMarshalLive(t *testing.T) {
	pl := Playlist{
		Kind:           PlaylistLive,
		TargetDuration: 10,
		Files: []PlaylistFile{
			{ID: "000000001.ts", Duration: 10},
		},
	}

	require.Equal(t,
		"#EXTM3U\r\n"+
			"#EXT-X-TARGETDURATION:10\r\n"+
			"#EXT-X-VERSION:4\r\n"+
			"#EXT-X-MEDIA-SEQUENCE:1\r\n"+
			"\r\n"+
			"#EXTINF:10\r\n"+
			"files/000000001.ts\r\n",
		string(pl.Marshal()))
}

func TestPlaylistMarshalEmpty(t *testing.T) {
	pl := Playlist{
		Kind:           PlaylistVOD,
		TargetDuration: 10,
	}

	require.Equal(t,
		"#EXTM3U\r\n"+
			"#EXT-X-PLAYLIST-TYPE:VOD\r\n"+
			"#EXT-X-TARGETDURATION:10\r\n"+
			"#EXT-X-VERSION:4\r\n"+
			"#EXT-X-MEDIA-SEQUENCE:1\r\n"+
			"\r\n"+
			"#EXT-X-ENDLIST\r\n",
		string(pl.Marshal()))
}
