package store

import "context"

// Namespaced wraps another store and prefixes every key with a fixed namespace.
// Every controller receives its own namespace so that no key is ever written by two different controllers.
type Namespaced struct {
	underlying Store
	prefix     string
}

var _ Store = (*Namespaced)(nil)

// Namespace creates a new namespaced view on the given store.
// The given prefix is joined with every key using a '.' separator.
func Namespace(underlying Store, prefix string) *Namespaced {
	return &Namespaced{
		underlying: underlying,
		prefix:     prefix + ".",
	}
}

// Get retrieves the value assigned to a key inside the namespace
func (ns *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return ns.underlying.Get(ctx, ns.prefix+key)
}

// Set assigns a value to a key inside the namespace
func (ns *Namespaced) Set(ctx context.Context, key, value string) error {
	return ns.underlying.Set(ctx, ns.prefix+key, value)
}

// Delete removes a key inside the namespace
func (ns *Namespaced) Delete(ctx context.Context, key string) error {
	return ns.underlying.Delete(ctx, ns.prefix+key)
}
