package strategy

import (
	"fmt"
	"slices"
	"sync"

	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// DefaultPreset is the preset used when none is requested.
const DefaultPreset = "default"

type registration struct {
	description string
	ctor        Constructor
	presets     map[string]map[string]any
}

// Registry maps strategy names to constructors and parameter presets.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	logger  *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*registration),
		logger:  l,
	}
}

// Register adds a constructor under name, replacing any previous one.
func (r *Registry) Register(name, description string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registration{
		description: description,
		ctor:        ctor,
		presets:     make(map[string]map[string]any),
	}
}

// RegisterPreset attaches a named parameter set to a registered strategy.
func (r *Registry) RegisterPreset(name, preset string, params map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}
	e.presets[preset] = MergeParams(params)
	return nil
}

// Names returns registered strategy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Description returns the one-line description of a strategy.
func (r *Registry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.description
	}
	return ""
}

// Presets returns the preset names of a strategy in sorted order.
func (r *Registry) Presets(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.presets))
	for p := range e.presets {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Build constructs a strategy from a preset with params layered on top.
// An empty preset selects DefaultPreset when one is registered.
func (r *Registry) Build(name, preset string, params map[string]any, deps Deps) (Strategy, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var base map[string]any
	if ok {
		switch {
		case preset == "":
			base = e.presets[DefaultPreset]
		default:
			var found bool
			base, found = e.presets[preset]
			if !found {
				r.mu.RUnlock()
				return nil, core.WrapError(core.ErrUnknownPreset, fmt.Errorf("%s/%s", name, preset))
			}
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
	}

	s, err := e.ctor(MergeParams(base, params), deps)
	if err != nil {
		r.logger.Warn("strategy construction failed",
			zap.String("strategy", name),
			zap.String("preset", preset),
			zap.Error(err),
		)
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	return s, nil
}
