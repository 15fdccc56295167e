// Package yamlwrapper provides a YAML unmarshaler for types that declare
// JSON tags only.
package yamlwrapper

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v2"
)

// stringifyKeys rebuilds v with string-keyed maps, since encoding/json
// rejects map[interface{}]interface{}.
func stringifyKeys(v interface{}) (interface{}, error) {
	switch tv := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(tv))
		for key, val := range tv {
			ks, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("integer keys are not supported (%v)", key)
			}

			conv, err := stringifyKeys(val)
			if err != nil {
				return nil, err
			}
			out[ks] = conv
		}
		return out, nil

	case []interface{}:
		for i, val := range tv {
			conv, err := stringifyKeys(val)
			if err != nil {
				return nil, err
			}
			tv[i] = conv
		}
		return tv, nil

	default:
		return v, nil
	}
}

// Unmarshal decodes YAML into dest by routing it through encoding/json,
// so that UnmarshalJSON methods of the destination apply to file values
// as well.
func Unmarshal(buf []byte, dest interface{}) error {
	// UnmarshalStrict rejects duplicate mapping keys. Unknown keys are
	// caught later, by the strict decoder of the destination type.
	var raw interface{}
	err := yaml.UnmarshalStrict(buf, &raw)
	if err != nil {
		return err
	}

	raw, err = stringifyKeys(raw)
	if err != nil {
		return err
	}

	enc, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	return json.Unmarshal(enc, dest)
}
