package config

import "errors"

// ErrNotLoaded is returned by Unmarshal on a Config that did not come from Load
var ErrNotLoaded = errors.New("config: not loaded through Load or LoadFromBytes")

// Exists reports whether key is set by any source, defaults included
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}

// Unmarshal decodes the section at key into out using its koanf tags. Sections the
// client does not model itself, such as "observability", are read this way.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return ErrNotLoaded
	}
	return c.k.Unmarshal(key, out)
}
