package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unserializable stands in for a value whose own formatting code panicked.
const unserializable = "[unserializable]"

// Stringify renders one console argument for the wire. Strings pass
// through untouched, errors render their message, and everything else is
// serialized as JSON with a fmt fallback for values JSON cannot express.
// A panic inside the value's own Error, String, or MarshalJSON method is
// swallowed so recording never breaks the caller.
func Stringify(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = unserializable
		}
	}()

	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case error:
		return val.Error()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

// JoinArgs renders each argument with Stringify and joins them with single
// spaces, mirroring how console-style variadic logging concatenates its
// arguments into one message.
func JoinArgs(args ...any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Stringify(a)
	}
	return strings.Join(parts, " ")
}
