// Package notification shows desktop toasts and blocking message boxes.
package notification

import (
	"log"
	"strings"

	"github.com/gen2brain/beeep"
)

const (
	AppName = "Open Rewrite"
	// MaxToastRunes caps the body of a toast; longer text is cut and marked.
	MaxToastRunes = 200
)

// notify is swapped out in tests.
var notify = beeep.Notify

// Truncate shortens text to MaxToastRunes runes, appending "..." when cut.
func Truncate(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= MaxToastRunes {
		return text
	}
	return string(r[:MaxToastRunes]) + "..."
}

// ShowResult shows a finished rewrite. Failures are logged, never returned.
func ShowResult(text string) {
	show(AppName, Truncate(text))
}

// ShowError shows a non-blocking failure toast.
func ShowError(message string) {
	show(AppName+" error", Truncate(message))
}

// ShowInfo shows a short informational toast.
func ShowInfo(title, message string) {
	show(title, Truncate(message))
}

func show(title, body string) {
	go func() {
		if err := notify(title, body, ""); err != nil {
			log.Printf("Notification: toast failed: %v (%s: %s)", err, title, body)
		}
	}()
}
