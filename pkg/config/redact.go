package config

import "net/url"

const redactedValue = "***"

// Redacted returns a copy of c with credentials masked, suitable for printing.
func (c Config) Redacted() Config {
	out := c
	if out.Endpoints.BearerToken != "" {
		out.Endpoints.BearerToken = redactedValue
	}
	if out.Sandbox.Auth.JWTSecret != "" {
		out.Sandbox.Auth.JWTSecret = redactedValue
	}
	out.Sandbox.Redis.URL = redactURL(out.Sandbox.Redis.URL)
	out.Endpoints.URL = redactURL(out.Endpoints.URL)
	return out
}

// redactURL masks the password of raw, if it carries one.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}
