package cache

import (
	"net/url"
	"strings"
)

// Key identifies one cached query: a scope path such as
// ["productCategories", "3"] plus the request parameters.
// Two keys are equal when their String forms are equal.
type Key struct {
	Scope  []string
	Params map[string]string
}

// NewKey builds a key from a scope and any number of parameter sets.
// Later sets override earlier ones.
func NewKey(scope []string, params ...map[string]string) Key {
	merged := make(map[string]string)
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	return Key{Scope: append([]string(nil), scope...), Params: merged}
}

// String returns the canonical encoding "seg1/seg2?k1=v1&k2=v2", with
// segments path-escaped and parameters sorted by name.
func (k Key) String() string {
	var b strings.Builder
	for i, seg := range k.Scope {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(seg))
	}
	if len(k.Params) > 0 {
		b.WriteByte('?')
		b.WriteString(k.Values().Encode())
	}
	return b.String()
}

// Equal reports structural equality
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}

// HasPrefix reports whether scope is a leading run of the key's segments.
// An empty scope matches every key.
func (k Key) HasPrefix(scope []string) bool {
	if len(scope) > len(k.Scope) {
		return false
	}
	for i, seg := range scope {
		if k.Scope[i] != seg {
			return false
		}
	}
	return true
}

// Values returns the parameters as url.Values
func (k Key) Values() url.Values {
	values := make(url.Values, len(k.Params))
	for name, v := range k.Params {
		values.Set(name, v)
	}
	return values
}
