package main

import (
	"os"
	"sync"

	"harness/internal/suite"
	"harness/internal/suites"
)

var (
	registryOnce sync.Once
	builtin      *suite.Registry
)

// registry returns the static case list. Parent and child build the same
// list, so a name started in a child always resolves to the same case.
func registry() *suite.Registry {
	registryOnce.Do(func() {
		builtin = suite.NewRegistry(os.Stderr)
		suites.RegisterAll(builtin)
	})
	return builtin
}
