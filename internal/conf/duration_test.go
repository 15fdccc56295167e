package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var casesDuration = []struct {
	name string
	dec  Duration
	enc  string
}{
	{
		"seconds",
		Duration(10 * time.Second),
		`"10s"`,
	},
	{
		"composite",
		Duration(13456 * time.Second),
		`"3h44m16s"`,
	},
	{
		"fractional",
		Duration(1500 * time.Millisecond),
		`"1.5s"`,
	},
}

func TestDurationUnmarshal(t *testing.T) {
	for _, ca := range casesDuration {
		t.Run(ca.name, func(t *testing.T) {
			var dec Duration
			err := dec.UnmarshalJSON([]byte(ca.enc))
			require.NoError(t, err)
			require.Equal(t, ca.dec, dec)
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	for _, ca := range casesDuration {
		t.Run(ca.name, func(t *testing.T) {
			enc, err := ca.dec.MarshalJSON()
			require.NoError(t, err)
			require.Equal(t, ca.enc, string(enc))
		})
	}
}

func TestDurationUnmarshalSeconds(t *testing.T) {
	for _, ca := range []struct {
		name string
		enc  string
		dec  Duration
	}{
		{"integer", `10`, Duration(10 * time.Second)},
		{"fractional", `2.5`, Duration(2500 * time.Millisecond)},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var dec Duration
			err := dec.UnmarshalJSON([]byte(ca.enc))
			require.NoError(t, err)
			require.Equal(t, ca.dec, dec)
		})
	}
}

func TestDurationUnmarshalError(t *testing.T) {
	for _, ca := range []struct {
		name string
		enc  string
	}{
		{"bad unit", `"10x"`},
		{"bad type", `true`},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var dec Duration
			err := dec.UnmarshalJSON([]byte(ca.enc))
			require.Error(t, err)
		})
	}
}
