package main

import (
	"fmt"
	"io"
	"sync"
)

// cliNotifier prints notifications for one-shot commands: infos to stdout, errors to stderr.
type cliNotifier struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func newCLINotifier(out, err io.Writer) *cliNotifier {
	return &cliNotifier{out: out, err: err}
}

func (n *cliNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, msg)
}

func (n *cliNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.err, msg)
}
