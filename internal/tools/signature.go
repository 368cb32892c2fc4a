package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StableJSON stringifies v with object keys sorted recursively, so two
// JSON-equivalent values always serialize identically.
func StableJSON(v any) string {
	var sb strings.Builder
	writeStable(&sb, normalizeJSON(v))
	return sb.String()
}

// normalizeJSON round-trips v through encoding/json so maps, structs, and
// typed slices all collapse to map[string]any / []any / float64 / string.
func normalizeJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}

func writeStable(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			writeStable(sb, t[k])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeStable(sb, e)
		}
		sb.WriteByte(']')
	default:
		b, _ := json.Marshal(t)
		sb.Write(b)
	}
}

// Signature fingerprints a (namespace, tool, args) invocation. Equal
// (tool, args) up to JSON object ordering yield equal signatures.
func Signature(namespace, tool string, args any) string {
	payload := tool + StableJSON(args)
	if namespace != "" {
		payload = namespace + "::" + payload
	}
	sum := sha256.Sum256([]byte(payload))
	return tool + ":" + hex.EncodeToString(sum[:])
}
