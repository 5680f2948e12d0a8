//go:build js

package transport

// New returns the transport for single-threaded hosts.
func New(opts Options) Transport {
	return NewCooperative(opts)
}
