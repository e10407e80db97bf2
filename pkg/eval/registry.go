package eval

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Evaluator)
)

// Register adds an evaluator factory to the registry.
// Called by evaluator implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Evaluator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an evaluator factory by name.
func Get(name string) (func(*slog.Logger) Evaluator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an evaluator instance for the configured engine.
// A nil logger uses a discard logger.
func New(cfg Config, logger *slog.Logger) (Evaluator, error) {
	if cfg.Engine == "" {
		return nil, fmt.Errorf("evaluator engine not specified")
	}
	factory, ok := Get(cfg.Engine)
	if !ok {
		return nil, &UnknownEvaluatorError{
			Engine:    cfg.Engine,
			Available: List(),
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// List returns all registered evaluator names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an evaluator name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownEvaluatorError is returned when an unknown engine is requested.
type UnknownEvaluatorError struct {
	Engine    string
	Available []string
}

func (e *UnknownEvaluatorError) Error() string {
	return fmt.Sprintf("unknown evaluator engine %q\nAvailable engines: %v\nHint: check evaluator.engine in querylens.yaml", e.Engine, e.Available)
}
