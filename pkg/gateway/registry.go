package gateway

import (
	"fmt"
	"sort"
)

// Registry resolves a gateway name to its configured client. It is built
// once at startup and read-only afterwards.
type Registry struct {
	clients     map[string]Client
	defaultName string
}

func NewRegistry(defaultName string) *Registry {
	return &Registry{
		clients:     make(map[string]Client),
		defaultName: defaultName,
	}
}

func (r *Registry) Register(c Client) error {
	name := c.Name()
	if name == "" {
		return NewError(KindConfig, "EMPTY_NAME", "gateway client has no name")
	}
	if _, ok := r.clients[name]; ok {
		return NewError(KindConfig, "DUPLICATE", fmt.Sprintf("gateway %q registered twice", name))
	}
	r.clients[name] = c
	return nil
}

// Resolve returns the client for name, or the default client when name is
// empty. Unknown names are a configuration error, not a business one.
func (r *Registry) Resolve(name string) (Client, error) {
	if name == "" {
		name = r.defaultName
	}
	c, ok := r.clients[name]
	if !ok {
		return nil, NewError(KindConfig, "UNKNOWN_GATEWAY", fmt.Sprintf("gateway %q is not configured", name))
	}
	return c, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
