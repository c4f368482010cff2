package publish

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/browser"
)

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(msg string)
}

// NopNotifier discards messages.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// WriterNotifier prints each message on its own line.
type WriterNotifier struct{ W io.Writer }

func (n WriterNotifier) Notify(msg string) { _, _ = fmt.Fprintln(n.W, msg) }

// LogNotifier logs messages at info level, for long-running modes.
type LogNotifier struct{ Logger *slog.Logger }

func (n LogNotifier) Notify(msg string) {
	n.Logger.Info("publish: notice", slog.String("message", msg))
}

// BrowserOpener opens URLs in the system browser.
func BrowserOpener(url string) error { return browser.OpenURL(url) }
