package llm

import (
	"sync"

	"go.uber.org/zap"
)

// Registry hands out providers by name, constructing each on first use.
type Registry struct {
	mu        sync.Mutex
	configs   map[Name]Config
	providers map[Name]Provider
	fallback  Name
	newGen    func(Name, Config) Generator
	logger    *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger handed to generators.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithGeneratorFactory replaces the hosted-API generator, e.g. in tests.
func WithGeneratorFactory(f func(Name, Config) Generator) RegistryOption {
	return func(r *Registry) { r.newGen = f }
}

// NewRegistry returns a registry over configs. fallback is the provider
// used for an empty name; it must be one of Names.
func NewRegistry(configs map[Name]Config, fallback string, opts ...RegistryOption) (*Registry, error) {
	def := GPT
	if fallback != "" {
		n, err := ParseName(fallback)
		if err != nil {
			return nil, err
		}
		def = n
	}
	r := &Registry{
		configs:   configs,
		providers: make(map[Name]Provider),
		fallback:  def,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.newGen == nil {
		r.newGen = func(n Name, c Config) Generator { return NewChatGenerator(n, c, r.logger) }
	}
	return r, nil
}

// Default returns the name used when a request names no provider.
func (r *Registry) Default() Name {
	return r.fallback
}

// Get returns the provider for name. An empty name selects the default;
// anything outside Names is UnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	n := r.fallback
	if name != "" {
		parsed, err := ParseName(name)
		if err != nil {
			return nil, err
		}
		n = parsed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[n]; ok {
		return p, nil
	}
	p := &chatProvider{name: n, gen: r.newGen(n, r.configs[n])}
	r.providers[n] = p
	return p, nil
}

// Configured lists providers that have an API key set.
func (r *Registry) Configured() []Name {
	var out []Name
	for _, n := range Names() {
		if r.configs[n].APIKey != "" {
			out = append(out, n)
		}
	}
	return out
}
