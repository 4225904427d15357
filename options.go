package handover

import "github.com/inconshreveable/log15"

// Option is an option function for Coordinator and StatusPublisher.
// See Rob Pike's post on the topic for more information on this pattern:
// https://commandcenter.blogspot.com/2014/01/self-referential-functions-and-design.html
type Option func(o *options)

type options struct {
	l          log15.Logger
	id         string
	markerPath string
}

// WithLogger configures the logger to use.
// By default, nothing will be logged.
func WithLogger(l log15.Logger) Option {
	return func(o *options) {
		o.l = l
	}
}

// WithID sets an identifier attached to every log line, so the old and new
// instance can be told apart in interleaved logs.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithMarkerPath sets where the Coordinator writes its completion marker.
// The default is DefaultMarkerPath.
func WithMarkerPath(path string) Option {
	return func(o *options) {
		o.markerPath = path
	}
}

func buildOptions(opts []Option) options {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	o := options{
		l:          noopLogger,
		markerPath: DefaultMarkerPath,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) logger(component string) log15.Logger {
	if o.id == "" {
		return o.l.New("component", component)
	}
	return o.l.New("component", component, "id", o.id)
}
