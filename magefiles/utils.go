//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

type cmdOptions struct {
	args   []string
	env    []string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) {
		o.args = append(o.args, args...)
	}
}

// withEnv adds KEY=VALUE pairs on top of the current environment.
func withEnv(kv ...string) cmdOption {
	return func(o *cmdOptions) {
		o.env = append(o.env, kv...)
	}
}

func withStream() cmdOption {
	return func(o *cmdOptions) {
		o.stream = true
	}
}

// executeCmd runs command and returns its combined output. The output is
// echoed while running in verbose mode or with withStream, otherwise only
// when the command fails.
func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	line := strings.TrimSpace(strings.Join(append(opts.env, append([]string{command}, opts.args...)...), " "))
	fmt.Printf("> %s\n", line)

	cmd := exec.Command(command, opts.args...)
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}

	stream := mg.Verbose() || opts.stream
	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out
	if stream {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	}

	if err := cmd.Run(); err != nil {
		if !stream {
			fmt.Printf("%s failed:\n%s\n", command, out.String())
		}
		return "", fmt.Errorf("%s: %w", line, err)
	}
	return out.String(), nil
}
