// Package trace gives every pipeline stage a shared, cheap debug-tracing
// gate in the style of per-package debugVM/debugRegAlloc booleans —
// except factored into one place so the topics are configured from a
// single environment variable instead of being hand-edited constants per
// package.
package trace

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	topics map[string]bool
)

func load() {
	topics = make(map[string]bool)
	for _, t := range strings.Split(os.Getenv("LAMVM_TRACE"), ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics[t] = true
		}
	}
}

// Enabled reports whether the given topic ("normalize", "codegen", "vm",
// "match") was named in LAMVM_TRACE.
func Enabled(topic string) bool {
	once.Do(load)
	return topics[topic] || topics["all"]
}

// Printf writes a trace line to stderr iff topic is enabled. Call sites
// look exactly like an `if debugVM { fmt.Printf(...) }` guard would.
func Printf(topic, format string, args ...interface{}) {
	if !Enabled(topic) {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] "+format+"\n", append([]interface{}{topic}, args...)...)
}
