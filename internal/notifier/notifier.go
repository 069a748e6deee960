package notifier

// TextNotifier is the minimal notification surface so components can
// depend on it without importing concrete implementations.
type TextNotifier interface {
	SendText(text string) error
}

// Nop drops every message; used when notifications are disabled.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
