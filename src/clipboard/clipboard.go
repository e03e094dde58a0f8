package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var ErrNotInitialized = errors.New("clipboard: not initialized")

var (
	mu          sync.Mutex
	initialized bool
)

func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}
	if err := clipboard.Init(); err != nil {
		return err
	}
	initialized = true
	return nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Read returns the current text content; non-text content reads as "".
func Read() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return "", ErrNotInitialized
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// System exposes the process clipboard as a value.
type System struct{}

func (System) Write(text string) error { return Write(text) }

func (System) Read() (string, error) { return Read() }
