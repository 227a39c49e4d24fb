// Package payload converts bus payloads into typed values.
package payload

import (
	"encoding/json"

	"brewcode-go/errcode"
)

// Decode accepts either a typed T (value or pointer) or a JSON-like value
// (map, []byte, string) and produces a T.
func Decode[T any](v any) (T, error) {
	var out T
	switch p := v.(type) {
	case T:
		return p, nil
	case *T:
		if p == nil {
			return out, errcode.InvalidParams
		}
		return *p, nil
	case nil:
		return out, errcode.InvalidParams
	case []byte:
		if err := json.Unmarshal(p, &out); err != nil {
			return out, errcode.Wrap(errcode.InvalidParams, "decode", err)
		}
		return out, nil
	case string:
		if err := json.Unmarshal([]byte(p), &out); err != nil {
			return out, errcode.Wrap(errcode.InvalidParams, "decode", err)
		}
		return out, nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return out, errcode.Wrap(errcode.InvalidParams, "decode", err)
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return out, errcode.Wrap(errcode.InvalidParams, "decode", err)
		}
		return out, nil
	}
}
