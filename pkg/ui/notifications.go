package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform notification command
type commandSender struct {
	build func(title, message string) *exec.Cmd
}

func (c commandSender) Send(title, message string) error {
	return c.build(title, message).Run()
}

func linuxSender() NotificationSender {
	return commandSender{build: func(title, message string) *exec.Cmd {
		return exec.Command("notify-send", "--app-name=imgharvest", title, message)
	}}
}

func macSender() NotificationSender {
	return commandSender{build: func(title, message string) *exec.Cmd {
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.Command("osascript", "-e", script)
	}}
}

func windowsSender() NotificationSender {
	return commandSender{build: func(title, message string) *exec.Cmd {
		quote := func(s string) string { return strings.ReplaceAll(s, "'", "''") }
		script := fmt.Sprintf(`New-BurntToastNotification -Text '%s', '%s'`, quote(title), quote(message))
		return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	}}
}

// Notifier sends run notifications when enabled
type Notifier struct {
	sender  NotificationSender
	enabled bool
}

// NewNotifier picks the sender for the current platform
func NewNotifier(enabled bool) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = linuxSender()
	case "darwin":
		sender = macSender()
	case "windows":
		sender = windowsSender()
	}
	return &Notifier{sender: sender, enabled: enabled}
}

// NewNotifierWithSender is used by tests
func NewNotifierWithSender(sender NotificationSender, enabled bool) *Notifier {
	return &Notifier{sender: sender, enabled: enabled}
}

// RunComplete announces the end of a run. Failures to notify are ignored.
func (n *Notifier) RunComplete(stored int, folder string) {
	if n == nil || !n.enabled || n.sender == nil {
		return
	}
	_ = n.sender.Send("imgharvest", fmt.Sprintf("Downloaded %d images to %s", stored, folder))
}
