// Package main provides shmt, a command line tool for ordered hash tables
// stored in shared memory segments.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/calvinalkan/shmtable/internal/cli"
)

func main() {
	// Interrupts cancel the running command, which then releases the segment
	// lock and unmaps before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, envMap(os.Environ()), sigCh))
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}

	return env
}
