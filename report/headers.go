package report

import (
	"net/http"
	"strings"
)

// HeaderMap is the wire representation of request or response headers:
// lowercase names mapped to a single value.
type HeaderMap map[string]string

// Clone returns an independent copy of the map.
func (h HeaderMap) Clone() HeaderMap {
	out := make(HeaderMap, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// NormalizeHeaders flattens any of the header shapes produced by HTTP
// plumbing into a HeaderMap. Multi-valued headers keep the last value, and
// names are lowercased so equivalent inputs normalize identically. Inputs
// of an unrecognized shape normalize to an empty map rather than failing.
func NormalizeHeaders(v any) HeaderMap {
	out := HeaderMap{}
	switch src := v.(type) {
	case nil:
	case HeaderMap:
		for k, val := range src {
			out[strings.ToLower(k)] = val
		}
	case http.Header:
		flattenLists(out, src)
	case map[string][]string:
		flattenLists(out, src)
	case map[string]string:
		for k, val := range src {
			out[strings.ToLower(k)] = val
		}
	case [][2]string:
		for _, pair := range src {
			out[strings.ToLower(pair[0])] = pair[1]
		}
	}
	return out
}

func flattenLists(dst HeaderMap, src map[string][]string) {
	for k, vals := range src {
		if len(vals) == 0 {
			continue
		}
		dst[strings.ToLower(k)] = vals[len(vals)-1]
	}
}
