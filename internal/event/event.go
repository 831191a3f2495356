// Package event is the reload coordinator: a broadcast bus carrying the
// bridge's lifecycle events to every live subscriber.
//
// Delivery is at-least-once to each subscriber registered when the event is
// published. Publishing never blocks and never drops: each subscription owns
// an unbounded mailbox.
package event

import "fmt"

// Event is a lifecycle signal.
//
// This is a sealed interface - only types in this package implement it.
type Event interface {
	eventNode()
	fmt.Stringer
}

// Ready is published once the bridge's accept loop is live.
// Addr is the bound listen address.
type Ready struct {
	Addr string
}

// Reload asks the bridge to shut down gracefully so it can be restarted.
// Path is the changed project file, or a short reason when the reload was
// not caused by a file change.
type Reload struct {
	Path string
}

// Stopped is published after the bridge has drained in-flight requests and
// closed its connection pool.
type Stopped struct{}

func (Ready) eventNode()   {}
func (Reload) eventNode()  {}
func (Stopped) eventNode() {}

func (r Ready) String() string {
	if r.Addr == "" {
		return "ready"
	}
	return fmt.Sprintf("ready(%s)", r.Addr)
}

func (r Reload) String() string { return fmt.Sprintf("reload(%s)", r.Path) }
func (Stopped) String() string  { return "stopped" }

// IsReload matches Reload events. For use with WaitFor.
func IsReload(e Event) bool {
	_, ok := e.(Reload)
	return ok
}

// IsReady matches Ready events. For use with WaitFor.
func IsReady(e Event) bool {
	_, ok := e.(Ready)
	return ok
}

// IsStopped matches Stopped events. For use with WaitFor.
func IsStopped(e Event) bool {
	_, ok := e.(Stopped)
	return ok
}
