//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Build compiles the payment server binary.
func Build() error {
	return sh.Run("go", "build", "-o", "bin/server", "./cmd/server")
}

// Test runs all tests with race detection.
func Test() error {
	return sh.Run("go", "test", "-race", "-cover", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.Run("go", "vet", "./...")
}

// All runs lint, tests, then build.
func All() error {
	mg.Deps(Lint, Test)
	return Build()
}
