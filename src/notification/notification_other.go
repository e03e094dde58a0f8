//go:build !windows

package notification

import "log"

// ShowBlockingError logs the message; there is no modal box off Windows.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
}

func ShowBlockingInfo(title, message string) {
	log.Printf("%s: %s", title, message)
	ShowInfo(title, message)
}
