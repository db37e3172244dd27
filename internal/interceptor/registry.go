package interceptor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Container resolves services by name for interceptor factories.
type Container interface {
	Lookup(name string) (any, bool)
}

// Services is a map backed Container.
type Services map[string]any

func (s Services) Lookup(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// Env is what a factory receives when building an interceptor.
type Env struct {
	Logger    *zap.Logger
	Gateway   Gateway
	Container Container
}

// Factory builds a fresh interceptor for one operation.
type Factory func(env Env) (Interceptor, error)

// Registry maps DataInterceptor names to factories. Instances are never
// cached: every Resolve builds a new one.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	log       *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{factories: make(map[string]Factory), log: log}
}

// Register binds name to f, replacing any previous factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = f
}

// Names lists registered interceptor names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve builds the interceptor registered under name. It returns nil when
// name is blank, unknown, or its factory fails or panics; failures are logged.
func (r *Registry) Resolve(name string, env Env) (ic Interceptor) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("interceptor not registered", zap.String("interceptor", name))
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("interceptor factory panicked", zap.String("interceptor", name), zap.Error(fmt.Errorf("%v", p)))
			ic = nil
		}
	}()
	built, err := f(env)
	if err != nil {
		r.log.Error("interceptor factory failed", zap.String("interceptor", name), zap.Error(err))
		return nil
	}
	return built
}

// OrNop returns ic, or a no-op interceptor when ic is nil.
func OrNop(ic Interceptor) Interceptor {
	if ic == nil {
		return Nop{}
	}
	return ic
}
