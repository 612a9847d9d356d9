//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

const (
	binaryName = "bin/room-relay"
	mainPath   = "."
)

// Build compiles the relay binary.
func Build() error {
	fmt.Println("Building relay binary...")
	return runCmd("go", "build", "-o", binaryName, mainPath)
}

// Test runs the unit and WebSocket tests with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return runCmd("go", "test", "-race", "-count=1", "./...")
}

// Lint runs go vet.
func Lint() error {
	fmt.Println("Running go vet...")
	return runCmd("go", "vet", "./...")
}

// Run builds and starts the relay.
func Run() error {
	mg.Deps(Build)
	return runCmd(binaryName)
}

// Clean removes build output.
func Clean() error {
	fmt.Println("Cleaning up...")
	return os.RemoveAll("bin")
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
