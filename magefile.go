//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles the ldfconvert executable into ./bin.
func Build() error {
	mg.Deps(BuildLdfconvert)
	fmt.Println("Compilation finished")
	return nil
}

func BuildLdfconvert() error {
	fmt.Println("Building ldfconvert executable...")
	cmd := exec.Command("go", "build", "-o", "./bin/ldfconvert", "./cmd/ldfconvert")
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Test runs the package test suite.
func Test() error {
	cmd := exec.Command("go", "test", "./...")
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
