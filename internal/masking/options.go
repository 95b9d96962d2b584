// Package masking redacts sensitive values from JSON payloads and strips
// control sequences from free-form text before either reaches a log sink.
package masking

import "strings"

// Marker replaces every redacted value. It is fixed so masked output stays
// recognizable across systems.
const Marker = "***MASKED***"

// Options configures a Masker. Field names match case-insensitively and
// exactly (no substring matching).
type Options struct {
	SensitiveFields []string
	// SensitiveHeaders extends DefaultSensitiveHeaders for HTTP header maps.
	SensitiveHeaders []string
}

// DefaultSensitiveFields returns the built-in denylist.
func DefaultSensitiveFields() []string {
	return []string{
		"password", "passwd", "pwd", "newpassword", "oldpassword", "confirmpassword",
		"secret", "clientsecret", "client_secret",
		"token", "accesstoken", "access_token", "refreshtoken", "refresh_token", "idtoken", "id_token",
		"apikey", "api_key", "authorization",
		"credential", "privatekey", "private_key",
		"cardnumber", "card_number", "creditcard", "credit_card", "cvv", "cvc", "cvv2",
		"ssn", "socialsecuritynumber", "pin",
	}
}

// DefaultSensitiveHeaders returns the header names masked by MaskHeaders and
// MaskHTTPHeader on top of the field denylist. They are always applied, even
// when SensitiveFields replaces the built-in field list.
func DefaultSensitiveHeaders() []string {
	return []string{
		"authorization", "proxy-authorization",
		"cookie", "set-cookie",
		"x-api-key", "x-auth-token", "x-csrf-token", "x-xsrf-token",
	}
}

// DefaultOptions returns Options holding the built-in denylist.
func DefaultOptions() Options {
	return Options{SensitiveFields: DefaultSensitiveFields()}
}

// WithExtraFields returns a copy of o with fields appended.
func (o Options) WithExtraFields(fields ...string) Options {
	merged := make([]string, 0, len(o.SensitiveFields)+len(fields))
	merged = append(merged, o.SensitiveFields...)
	merged = append(merged, fields...)
	return Options{SensitiveFields: merged, SensitiveHeaders: o.SensitiveHeaders}
}

// normalize lowercases, trims and deduplicates field names.
func (o Options) normalize() map[string]struct{} {
	return nameSet(o.SensitiveFields)
}

func (o Options) normalizeHeaders() map[string]struct{} {
	return nameSet(DefaultSensitiveHeaders(), o.SensitiveHeaders)
}

func nameSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, names := range lists {
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			set[n] = struct{}{}
		}
	}
	return set
}
