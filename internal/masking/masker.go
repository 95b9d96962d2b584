package masking

import (
	"net/http"
	"strings"

	"github.com/valyala/fastjson"
)

// maskedValue is the template copied over every redacted JSON value.
var maskedValue = func() *fastjson.Value {
	var a fastjson.Arena
	return a.NewString(Marker)
}()

// Masker redacts configured field names. Its configuration is read-only after
// New returns, so one Masker may be shared by any number of goroutines.
// The zero Masker has no denylist; it still masks card numbers in non-JSON
// text. Use New or NewDefault for a configured one.
type Masker struct {
	fields     map[string]struct{}
	headers    map[string]struct{}
	fallback   *fallback
	parsers    fastjson.ParserPool
	onFallback func()
}

// Option customizes a Masker.
type Option func(*Masker)

// WithFallbackHook registers fn to be called each time a payload is not valid
// JSON and the string-level fallback runs instead.
func WithFallbackHook(fn func()) Option {
	return func(m *Masker) {
		m.onFallback = fn
	}
}

// New creates a Masker for opts. Separate Maskers never share configuration.
func New(opts Options, options ...Option) *Masker {
	fields := opts.normalize()
	m := &Masker{
		fields:   fields,
		headers:  opts.normalizeHeaders(),
		fallback: newFallback(fields),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewDefault creates a Masker using the built-in denylist.
func NewDefault(options ...Option) *Masker {
	return New(DefaultOptions(), options...)
}

// IsSensitive reports whether name is a configured sensitive field.
func (m *Masker) IsSensitive(name string) bool {
	_, ok := m.fields[strings.ToLower(name)]
	return ok
}

// IsSensitiveHeader reports whether the HTTP header name is masked. Header
// names match the header denylist and the field denylist, case-insensitively.
func (m *Masker) IsSensitiveHeader(name string) bool {
	if _, ok := m.headers[strings.ToLower(name)]; ok {
		return true
	}
	return m.IsSensitive(name)
}

// Fields returns the configured field names, lowercased.
func (m *Masker) Fields() []string {
	out := make([]string, 0, len(m.fields))
	for f := range m.fields {
		out = append(out, f)
	}
	return out
}

// MaskJSON returns a copy of text with every sensitive member's value replaced
// by Marker, at any depth. Text that is not valid JSON goes through the
// best-effort string fallback. Empty input is returned unchanged.
func (m *Masker) MaskJSON(text string) string {
	if text == "" {
		return text
	}
	if err := fastjson.Validate(text); err != nil {
		return m.maskFallback(text)
	}

	p := m.parsers.Get()
	defer m.parsers.Put(p)

	v, err := p.Parse(text)
	if err != nil {
		return m.maskFallback(text)
	}
	m.walk(v)
	return string(v.MarshalTo(nil))
}

// MaskJSONBytes is MaskJSON for byte slices. A nil slice stays nil.
func (m *Masker) MaskJSONBytes(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	return []byte(m.MaskJSON(string(b)))
}

// MaskHeaders returns a copy of headers with sensitive header values replaced.
func (m *Masker) MaskHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if m.IsSensitiveHeader(k) {
			out[k] = Marker
			continue
		}
		out[k] = v
	}
	return out
}

// MaskHTTPHeader flattens h and masks sensitive values. Multiple values of a
// header are joined with ", ".
func (m *Masker) MaskHTTPHeader(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	flat := make(map[string]string, len(h))
	for k, values := range h {
		flat[k] = strings.Join(values, ", ")
	}
	return m.MaskHeaders(flat)
}

// walk redacts sensitive members of objects and recurses into everything else.
func (m *Masker) walk(v *fastjson.Value) {
	switch v.Type() {
	case fastjson.TypeObject:
		o, err := v.Object()
		if err != nil {
			return
		}
		o.Visit(func(key []byte, child *fastjson.Value) {
			if m.IsSensitive(string(key)) {
				*child = *maskedValue
				return
			}
			m.walk(child)
		})
	case fastjson.TypeArray:
		for _, item := range v.GetArray() {
			m.walk(item)
		}
	}
}

func (m *Masker) maskFallback(text string) string {
	if m.onFallback != nil {
		m.onFallback()
	}
	return m.fallback.apply(text)
}
