// Package suites holds the built-in cases shipped with the harness binary.
// Each file covers one collaborator; the harness only consumes its behaviour.
package suites

import "harness/internal/suite"

// RegisterAll adds every built-in suite to reg in a fixed order.
func RegisterAll(reg *suite.Registry) {
	registerZlib(reg)
	registerJSON(reg)
	registerPNG(reg)
	registerSelf(reg)
}
