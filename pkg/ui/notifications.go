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

// commandSender shells out to the platform notifier
type commandSender struct {
	build func(title, message string) *exec.Cmd
}

func (c commandSender) Send(title, message string) error {
	return c.build(title, message).Run()
}

// platformSender returns nil on platforms without a known notifier
func platformSender(goos string) NotificationSender {
	switch goos {
	case "linux":
		return commandSender{func(title, message string) *exec.Cmd {
			return exec.Command("notify-send", "--app-name=musinsa-crawler", title, message)
		}}
	case "darwin":
		return commandSender{func(title, message string) *exec.Cmd {
			script := "display notification " + appleScriptString(message) + " with title " + appleScriptString(title)
			return exec.Command("osascript", "-e", script)
		}}
	case "windows":
		return commandSender{func(title, message string) *exec.Cmd {
			return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", toastScript(title, message))
		}}
	}
	return nil
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// toastScript shows a ToastText02 notification through the WinRT API
func toastScript(title, message string) string {
	escape := func(s string) string {
		return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "''").Replace(s)
	}
	return fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Musinsa Crawler').Show([Windows.UI.Notifications.ToastNotification]::new($doc))`,
		escape(title), escape(message))
}

// Notifier prints run results and mirrors them to the desktop when enabled
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the running platform. A disabled
// notifier only prints.
func NewNotifier(enabled bool) *Notifier {
	if !enabled {
		return &Notifier{}
	}
	return &Notifier{sender: platformSender(runtime.GOOS)}
}

func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) notify(always bool, paint func(string) string, title, message string) {
	printf(always, "\n%s: %s\n", paint(title), paint(message))
	if n.sender != nil {
		// best effort: a missing notify-send must not fail the run
		_ = n.sender.Send(title, message)
	}
}

func (n *Notifier) SendNotification(title, message string) {
	n.notify(false, Cyan, title, message)
}

// SendError is printed even in quiet mode
func (n *Notifier) SendError(title, message string) {
	n.notify(true, Red, title, message)
}

func (n *Notifier) SendSuccess(title, message string) {
	n.notify(false, Green, title, message)
}
