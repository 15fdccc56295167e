package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a duration. It is unmarshaled from either a string in
// time.ParseDuration syntax or a plain number of seconds, and is
// marshaled to a string.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var in interface{}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	switch v := in.(type) {
	case string:
		du, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(du)

	case float64:
		*d = Duration(v * float64(time.Second))

	default:
		return fmt.Errorf("invalid duration: %v", in)
	}

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *Duration) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
