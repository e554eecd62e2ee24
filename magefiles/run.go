//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed in a window. METRONOME_CONFIG selects a config file.
func (Run) Testbed() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run testbed...")
	_, err := executeCmd("bin/metronome", withArgs(testbedArgs()...), withStream())
	return err
}

// Runs the testbed without a window or audio device.
func (Run) Headless() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run headless testbed...")
	_, err := executeCmd("bin/metronome", withArgs(append(testbedArgs(), "--headless")...), withStream())
	return err
}

func testbedArgs() []string {
	if path := os.Getenv("METRONOME_CONFIG"); path != "" {
		return []string{"--config", path}
	}
	return nil
}
