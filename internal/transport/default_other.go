//go:build !js

package transport

// New returns the transport for hosts with real threads.
func New(opts Options) Transport {
	return NewThreaded(opts)
}
