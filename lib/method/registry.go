package method

import (
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/util/logger"
)

var (
	ErrUnknownMethod   = oops.Errorf("unknown method")
	ErrUnknownImpl     = oops.Errorf("unknown method implementation")
	ErrImplUnavailable = oops.Errorf("method implementation not available")
)

// Info is the opaque tag shared by all implementations of one construction.
type Info struct {
	Name string
}

// Implementation is one concrete realization of a construction, e.g. a
// hardware-accelerated variant followed by a portable fallback.
type Implementation struct {
	Name string

	// Available probes whether the implementation can run here. A nil probe
	// means unconditionally available.
	Available func() bool

	Factory func() Method
}

type registryEntry struct {
	info     *Info
	impls    []Implementation
	override string
}

var (
	registryMu sync.Mutex
	registry   = map[string]*registryEntry{}
)

// Register adds a construction with its ordered implementation list. Called
// from the method packages' init functions; registering the same name twice
// appends the implementations.
func Register(name string, impls ...Implementation) {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry := registry[name]
	if entry == nil {
		entry = &registryEntry{info: &Info{Name: name}}
		registry[name] = entry
	}
	entry.impls = append(entry.impls, impls...)
}

// SetImplementation overrides the automatic selection for a construction.
// Used by the configuration layer.
func SetImplementation(name, impl string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry := registry[name]
	if entry == nil {
		return oops.Wrapf(ErrUnknownMethod, "method %q", name)
	}
	for _, i := range entry.impls {
		if i.Name == impl {
			entry.override = impl
			return nil
		}
	}
	return oops.Wrapf(ErrUnknownImpl, "method %q implementation %q", name, impl)
}

// Lookup resolves a construction name to its info tag and the chosen
// implementation: the override if one is set, otherwise the first
// implementation whose probe passes.
func Lookup(name string) (*Info, Method, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	entry := registry[name]
	if entry == nil {
		return nil, nil, oops.Wrapf(ErrUnknownMethod, "method %q", name)
	}

	for _, impl := range entry.impls {
		if entry.override != "" && impl.Name != entry.override {
			continue
		}
		if impl.Available != nil && !impl.Available() {
			if entry.override != "" {
				return nil, nil, oops.Wrapf(ErrImplUnavailable, "method %q implementation %q", name, impl.Name)
			}
			continue
		}
		log.WithFields(logger.Fields{
			"at":     "Lookup",
			"method": name,
			"impl":   impl.Name,
		}).Debug("selected method implementation")
		return entry.info, impl.Factory(), nil
	}

	return nil, nil, oops.Wrapf(ErrImplUnavailable, "method %q", name)
}

// Names lists the registered construction names.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
