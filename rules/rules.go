// Package rules maps game names to their backends.
package rules

import (
	"fmt"
	"sort"

	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/rules/connect4"
)

var registry = map[string]func() game.Backend{
	connect4.Name: func() game.Backend { return connect4.New() },
}

// aliases accepts the backend module names used by older config files.
var aliases = map[string]string{
	"c4_backend": connect4.Name,
}

// Lookup returns a fresh backend for name.
func Lookup(name string) (game.Backend, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("rules: unknown game %q (have %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered games in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
