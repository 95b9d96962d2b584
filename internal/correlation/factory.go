package correlation

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idTimeLayout renders the creation time at whole-second precision so ids
// sort by creation time.
const idTimeLayout = "20060102150405"

// Factory creates correlation contexts for one process. Host metadata is
// resolved once when the factory is built.
type Factory struct {
	host HostInfo
	now  func() time.Time
}

// Option customizes a Factory.
type Option func(*Factory)

// WithHost overrides the resolved host identity.
func WithHost(host HostInfo) Option {
	return func(f *Factory) {
		f.host = host
		if f.host.Hash == "" {
			f.host.Hash = hostHash(host.Name)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory creates a Factory. Without WithHost the host is resolved from the
// environment.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	if f.host == (HostInfo{}) {
		f.host = ResolveHost()
	}
	return f
}

// Host returns the host identity stamped on every context.
func (f *Factory) Host() HostInfo {
	return f.host
}

// New creates a context with a freshly generated correlation id.
func (f *Factory) New() *Context {
	start := f.now().UTC()
	return f.build(f.generateID(start), "", start)
}

// FromUpstream creates a context that reuses an inbound correlation id and
// records the optional parent id. A blank id falls back to New.
func (f *Factory) FromUpstream(existingID, parentID string) *Context {
	existingID = strings.TrimSpace(existingID)
	if existingID == "" {
		return f.New()
	}
	return f.build(existingID, strings.TrimSpace(parentID), f.now().UTC())
}

// FromHeaders picks FromUpstream when the correlation header is present and New
// otherwise.
func (f *Factory) FromHeaders(h http.Header) *Context {
	return f.FromUpstream(h.Get(HeaderCorrelationID), h.Get(HeaderParentCorrelationID))
}

// GenerateID returns a new correlation id without building a context.
func (f *Factory) GenerateID() string {
	return f.generateID(f.now().UTC())
}

func (f *Factory) build(id, parent string, start time.Time) *Context {
	return &Context{
		correlationID:       id,
		parentCorrelationID: parent,
		serverName:          f.host.Name,
		serverIP:            f.host.IP,
		requestStartTime:    start,
		properties:          make(map[string]any),
		now:                 f.now,
	}
}

// generateID concatenates the timestamp, an 8 character random token and the
// host hash: 20261015093000-1a2b3c4d-9f3e.
func (f *Factory) generateID(t time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return t.Format(idTimeLayout) + "-" + token + "-" + f.host.Hash
}
