// Package tray owns the system tray icon and its menu.
package tray

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"open-rewrite/src/notification"
)

// Config wires menu entries to the rest of the application. Nil callbacks
// hide their entry.
type Config struct {
	Title   string
	Tooltip string
	Version string

	OnRewrite     func()
	OnCopyLast    func()
	OnCheckUpdate func()
	// StartupEnabled reports the current run-at-login state; OnToggleStartup
	// flips it and returns the new state.
	StartupEnabled  func() bool
	OnToggleStartup func() (bool, error)
	OnExit          func()
}

type Tray struct {
	cfg  Config
	quit chan struct{}
	once sync.Once
}

var (
	aboutMu     sync.Mutex
	aboutHotkey string
	aboutExtra  []string

	// ready is set once systray has started; tooltip updates before that are kept.
	readyMu        sync.Mutex
	ready          bool
	pendingTooltip string
)

func New(cfg Config) (*Tray, error) {
	if cfg.Title == "" {
		cfg.Title = notification.AppName
	}
	if cfg.Tooltip == "" {
		cfg.Tooltip = cfg.Title
	}
	return &Tray{cfg: cfg, quit: make(chan struct{})}, nil
}

// Run blocks on the systray loop. On most platforms it must be called from
// the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Destroy removes the icon. Safe to call more than once.
func (t *Tray) Destroy() {
	t.once.Do(func() {
		close(t.quit)
		systray.Quit()
	})
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon())
	systray.SetTitle(t.cfg.Title)

	readyMu.Lock()
	ready = true
	tip := t.cfg.Tooltip
	if pendingTooltip != "" {
		tip = pendingTooltip
	}
	readyMu.Unlock()
	systray.SetTooltip(tip)

	mRewrite := t.addItem(t.cfg.OnRewrite != nil, "Rewrite selection", "Rewrite the highlighted text")
	mCopy := t.addItem(t.cfg.OnCopyLast != nil, "Copy last result", "Copy the most recent rewrite")
	systray.AddSeparator()

	var mStartup *systray.MenuItem
	if t.cfg.OnToggleStartup != nil {
		checked := t.cfg.StartupEnabled != nil && t.cfg.StartupEnabled()
		mStartup = systray.AddMenuItemCheckbox("Run at startup", "Start Open Rewrite when you log in", checked)
	}
	mUpdate := t.addItem(t.cfg.OnCheckUpdate != nil, "Check for updates", "Look for a newer release")
	mAbout := systray.AddMenuItem("About", "About Open Rewrite")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-clicked(mRewrite):
				go t.cfg.OnRewrite()
			case <-clicked(mCopy):
				go t.cfg.OnCopyLast()
			case <-clicked(mStartup):
				on, err := t.cfg.OnToggleStartup()
				if err != nil {
					log.Printf("Tray: startup toggle failed: %v", err)
					notification.ShowError(fmt.Sprintf("Could not change startup setting: %v", err))
					continue
				}
				if on {
					mStartup.Check()
				} else {
					mStartup.Uncheck()
				}
			case <-clicked(mUpdate):
				go t.cfg.OnCheckUpdate()
			case <-mAbout.ClickedCh:
				go notification.ShowBlockingInfo("About "+t.cfg.Title, AboutText(t.cfg.Title, t.cfg.Version))
			case <-mQuit.ClickedCh:
				log.Printf("Tray: quit requested")
				t.Destroy()
			case <-t.quit:
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	readyMu.Lock()
	ready = false
	readyMu.Unlock()
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func (t *Tray) addItem(enabled bool, title, tip string) *systray.MenuItem {
	if !enabled {
		return nil
	}
	return systray.AddMenuItem(title, tip)
}

// clicked returns a nil channel for hidden entries so their select case never fires.
func clicked(m *systray.MenuItem) <-chan struct{} {
	if m == nil {
		return nil
	}
	return m.ClickedCh
}

// UpdateTooltip changes the tray tooltip, or remembers it until the tray is up.
func UpdateTooltip(text string) {
	readyMu.Lock()
	defer readyMu.Unlock()
	pendingTooltip = text
	if ready {
		systray.SetTooltip(text)
	}
}

func SetAboutHotkey(hotkey string) {
	aboutMu.Lock()
	aboutHotkey = hotkey
	aboutMu.Unlock()
}

// SetAboutExtra appends a line to the About box.
func SetAboutExtra(line string) {
	aboutMu.Lock()
	aboutExtra = append(aboutExtra, line)
	aboutMu.Unlock()
}

func AboutText(title, version string) string {
	aboutMu.Lock()
	defer aboutMu.Unlock()
	var b strings.Builder
	b.WriteString(title)
	if version != "" {
		b.WriteString(" " + version)
	}
	b.WriteString("\n\nSelect text anywhere and press the hotkey to rewrite it.")
	if aboutHotkey != "" {
		fmt.Fprintf(&b, "\nHotkey: %s", aboutHotkey)
	}
	for _, line := range aboutExtra {
		b.WriteString("\n" + line)
	}
	return b.String()
}
