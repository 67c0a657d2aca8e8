package state

import (
	"log/slog"
	"time"
)

// Notice reports that refreshing a resource failed, or recovered when Err
// is nil. It is informational; the failing resource keeps its last known
// good data.
type Notice struct {
	Resource string
	Err      error
	At       time.Time
}

// Notices fans fetch failures out to observers and tracks which resources
// are currently failing.
type Notices struct {
	logger    *slog.Logger
	now       func() time.Time
	failing   map[string]error
	observers []func(Notice)
}

// NewNotices creates an empty Notices. A nil now uses time.Now.
func NewNotices(now func() time.Time, logger *slog.Logger) *Notices {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Notices{
		logger:  logger,
		now:     now,
		failing: make(map[string]error),
	}
}

// OnNotice registers an observer.
func (n *Notices) OnNotice(fn func(Notice)) {
	n.observers = append(n.observers, fn)
}

// Fail records a failure for resource.
func (n *Notices) Fail(resource string, err error) {
	n.failing[resource] = err
	n.emit(Notice{Resource: resource, Err: err, At: n.now()})
}

// Recover clears a failure. Observers hear about it only if resource was
// failing.
func (n *Notices) Recover(resource string) {
	if _, ok := n.failing[resource]; !ok {
		return
	}
	delete(n.failing, resource)
	n.logger.Info("resource recovered", "resource", resource)
	n.emit(Notice{Resource: resource, At: n.now()})
}

// Failing returns the last error for every resource that is failing.
func (n *Notices) Failing() map[string]error {
	out := make(map[string]error, len(n.failing))
	for k, v := range n.failing {
		out[k] = v
	}
	return out
}

func (n *Notices) emit(notice Notice) {
	for _, fn := range n.observers {
		fn(notice)
	}
}
