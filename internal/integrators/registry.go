package integrators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/latticesim/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"RK23": func() dynamo.Integrator { return NewRK23() },
	"RK45": func() dynamo.Integrator { return NewRK45() },
	"RK4":  func() dynamo.Integrator { return NewRK4() },
}

// New returns a fresh integrator by (case-insensitive) name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := registry[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
