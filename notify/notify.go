// Package notify delivers run outcomes to configured sinks. A
// Notifier never blocks the pipeline on delivery failure; notification
// errors are logged, not propagated as run errors.
package notify

import (
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Notifier is one delivery sink for a completed run's report.
type Notifier interface {
	Notify(report vaultcron.RunReport) error
}

// Multi fans a report out to every configured Notifier, attempting
// every sink rather than stopping at the first failure.
type Multi struct {
	Notifiers []Notifier
}

// Notify calls every sink and returns the first error encountered, if
// any, after attempting delivery to all of them.
func (m Multi) Notify(report vaultcron.RunReport) error {
	var firstErr error
	for _, n := range m.Notifiers {
		if err := n.Notify(report); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
