package auth

import "crypto/subtle"

// ModeAPIKey is the auth mode that enables key checks.
const ModeAPIKey = "apikey"

// keyCheck holds the resolved API key settings shared by the gRPC and HTTP
// guards.
type keyCheck struct {
	header string
	key    string
}

// newKeyCheck returns nil when checks are disabled: mode is not apikey or
// no key is configured.
func newKeyCheck(mode, header, key string) *keyCheck {
	if mode != ModeAPIKey || key == "" {
		return nil
	}
	return &keyCheck{header: header, key: key}
}

// match compares got with the configured key in constant time.
func (c *keyCheck) match(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(c.key)) == 1
}
