package model

import (
	"fmt"
	"math"
	"time"

	"github.com/multiformats/go-multibase"

	"xdao.co/vcb/claims"
)

// GraphFromMap converts decoded YAML or JSON into a claims graph. Integers,
// floats, strings, booleans, timestamps, byte strings and nested maps are
// supported; sequences are not.
func GraphFromMap(m map[string]any) (*claims.Graph, error) {
	g := claims.New()
	for k, v := range m {
		cv, err := valueFrom(k, v)
		if err != nil {
			return nil, err
		}
		g.Set(k, cv)
	}
	return g, nil
}

func valueFrom(key string, v any) (claims.Value, error) {
	switch x := v.(type) {
	case string:
		return claims.String(x), nil
	case bool:
		return claims.Boolean(x), nil
	case int:
		return claims.Integer(int64(x)), nil
	case int64:
		return claims.Integer(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return claims.Value{}, fmt.Errorf("claim %q: integer %d overflows", key, x)
		}
		return claims.Integer(int64(x)), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return claims.Integer(int64(x)), nil
		}
		return claims.Float(x), nil
	case time.Time:
		return claims.Date(x), nil
	case []byte:
		return claims.Bytes(x), nil
	case map[string]any:
		g, err := GraphFromMap(x)
		if err != nil {
			return claims.Value{}, err
		}
		return claims.Nested(g), nil
	case map[any]any:
		m := make(map[string]any, len(x))
		for mk, mv := range x {
			s, ok := mk.(string)
			if !ok {
				return claims.Value{}, fmt.Errorf("claim %q: non-string key %v", key, mk)
			}
			m[s] = mv
		}
		return valueFrom(key, m)
	case nil:
		return claims.Value{}, fmt.Errorf("claim %q: null values are not supported", key)
	default:
		return claims.Value{}, fmt.Errorf("claim %q: unsupported type %T", key, v)
	}
}

// MapFromGraph is the JSON-friendly inverse of GraphFromMap. Byte strings
// become multibase base64url text and dates become RFC 3339 text.
func MapFromGraph(g *claims.Graph) map[string]any {
	if g == nil {
		return nil
	}
	out := make(map[string]any, g.Len())
	for _, c := range g.Claims() {
		out[c.Key] = jsonValue(c.Value)
	}
	return out
}

func jsonValue(v claims.Value) any {
	switch v.Kind() {
	case claims.KindString:
		return v.Str()
	case claims.KindInteger:
		return v.Int()
	case claims.KindFloat:
		return v.Float()
	case claims.KindBoolean:
		return v.Bool()
	case claims.KindDate:
		return v.Time().Format(time.RFC3339)
	case claims.KindBytes:
		s, _ := multibase.Encode(multibase.Base64url, v.Raw())
		return s
	case claims.KindGraph:
		return MapFromGraph(v.Graph())
	default:
		return nil
	}
}
