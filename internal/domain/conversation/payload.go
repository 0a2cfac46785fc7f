package conversation

// Payload holds the answers collected so far. Values are strings or string lists.
type Payload map[string]any

func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns a list value; lists decoded from JSON arrive as []any.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone returns a shallow copy with list values copied.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		switch v.(type) {
		case []any, []string:
			out[k] = p.Strings(k)
		default:
			out[k] = v
		}
	}
	return out
}
