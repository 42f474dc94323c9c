// Package systemd reports service state to systemd when framestamp runs as a
// notify-type unit.
package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. Outside systemd every call is a no-op.
type Notifier struct{}

// NewNotifier creates a notifier. NOTIFY_SOCKET is left in the environment.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() (bool, error) {
	return n.send(daemon.SdNotifyReady)
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() (bool, error) {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) (bool, error) {
	return n.send("STATUS=" + fmt.Sprintf(format, args...))
}

func (n *Notifier) send(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}
