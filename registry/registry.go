// Package registry tracks the live transport for each (consumer, protocol)
// pair.
//
// The registry holds at most one transport per key. Installing under an
// occupied key destroys the previous transport before storing the new one,
// so a consumer can never receive data from two sessions of one protocol.
// All methods must be called on the event loop.
package registry

import (
	"sort"

	"github.com/pithecene-io/tlink/types"
)

// Transport is a writable, closable connection owned by the registry.
type Transport interface {
	// Write queues p for delivery. It must not block the caller.
	Write(p []byte) error
	// Close tears the connection down. Idempotent.
	Close() error
}

// Registry maps session keys to transports.
type Registry struct {
	sessions map[types.SessionKey]Transport
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[types.SessionKey]Transport)}
}

// Install stores t under key, first destroying any transport already there.
func (r *Registry) Install(key types.SessionKey, t Transport) {
	if old, ok := r.sessions[key]; ok && old != t {
		_ = old.Close()
	}
	r.sessions[key] = t
}

// Remove destroys the transport under key and clears the entry.
// Returns false if nothing was installed.
func (r *Registry) Remove(key types.SessionKey) bool {
	t, ok := r.sessions[key]
	if !ok {
		return false
	}
	delete(r.sessions, key)
	_ = t.Close()
	return true
}

// Get returns the transport installed under key.
func (r *Registry) Get(key types.SessionKey) (Transport, bool) {
	t, ok := r.sessions[key]
	return t, ok
}

// Each calls fn for every transport of protocol p in consumer order.
// fn must not install or remove entries.
func (r *Registry) Each(p types.Protocol, fn func(types.SessionKey, Transport)) {
	keys := make([]types.SessionKey, 0, len(r.sessions))
	for k := range r.sessions {
		if k.Protocol == p {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ConsumerID < keys[j].ConsumerID })
	for _, k := range keys {
		fn(k, r.sessions[k])
	}
}

// Len returns the number of installed transports.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// CloseAll destroys every installed transport and empties the registry.
func (r *Registry) CloseAll() {
	for k, t := range r.sessions {
		delete(r.sessions, k)
		_ = t.Close()
	}
}
