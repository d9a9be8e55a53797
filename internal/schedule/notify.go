package schedule

import "github.com/gen2brain/beeep"

// Notifier delivers user-facing notifications about scheduled exports.
type Notifier interface {
	Notify(title, body string) error
}

// DesktopNotifier shows native desktop notifications.
type DesktopNotifier struct {
	// AppIcon is an optional path to an icon shown with the notification.
	AppIcon string
}

func (n DesktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, n.AppIcon)
}

// NopNotifier discards notifications. Used when the process runs headless.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) error { return nil }
