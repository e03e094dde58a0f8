// Package updater checks GitHub releases for a newer build and downloads it.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/mod/semver"
)

// Version is the running build, set with -ldflags "-X open-rewrite/src/updater.Version=1.2.3".
var Version = "1.0.0"

const (
	DefaultAPIBase   = "https://api.github.com"
	checkTimeout     = 10 * time.Second
	downloadTimeout  = 60 * time.Second
	cacheTTL         = 1 * time.Hour
	downloadFileName = "open_rewrite_update.exe"
)

// Result mirrors what the settings UI shows after a check.
type Result struct {
	UpdateAvailable bool   `json:"update_available"`
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version,omitempty"`
	DownloadURL     string `json:"download_url,omitempty"`
	ReleaseNotes    string `json:"release_notes,omitempty"`
	Message         string `json:"message,omitempty"`
}

type release struct {
	TagName string  `json:"tag_name"`
	Body    string  `json:"body"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type Checker struct {
	repo        string
	asset       string
	current     string
	apiBase     string
	downloadDir string
	http        *http.Client
	cache       *ttlcache.Cache[string, Result]
}

type Option func(*Checker)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) { c.http = hc }
}

// WithAPIBase points the checker at another GitHub API root (tests, enterprise).
func WithAPIBase(base string) Option {
	return func(c *Checker) { c.apiBase = strings.TrimRight(base, "/") }
}

func WithDownloadDir(dir string) Option {
	return func(c *Checker) { c.downloadDir = dir }
}

func WithCurrentVersion(v string) Option {
	return func(c *Checker) { c.current = v }
}

// New returns a Checker for repo ("owner/name") looking for the named release asset.
func New(repo, assetName string, opts ...Option) *Checker {
	c := &Checker{
		repo:        repo,
		asset:       assetName,
		current:     Version,
		apiBase:     DefaultAPIBase,
		downloadDir: os.TempDir(),
		http:        &http.Client{},
		cache: ttlcache.New[string, Result](
			ttlcache.WithTTL[string, Result](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, Result](),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cache.Start()
	return c
}

// Close stops the cache expiration loop.
func (c *Checker) Close() { c.cache.Stop() }

func (c *Checker) CurrentVersion() string { return c.current }

// Check reports whether the latest release is newer than the running build.
// Successful answers are cached for an hour.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	if item := c.cache.Get(c.repo); item != nil {
		return item.Value(), nil
	}

	log.Printf("Updater: checking %s for updates", c.repo)
	rel, err := c.latest(ctx)
	if err != nil {
		log.Printf("Updater: check failed: %v", err)
		return Result{CurrentVersion: c.current}, err
	}
	res := c.evaluate(rel)
	c.cache.Set(c.repo, res, ttlcache.DefaultTTL)
	return res, nil
}

func (c *Checker) latest(ctx context.Context) (release, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.http.Do(req)
	if err != nil {
		return release{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return release{}, fmt.Errorf("release lookup returned %s", resp.Status)
	}
	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return release{}, fmt.Errorf("decode release: %w", err)
	}
	return rel, nil
}

func (c *Checker) evaluate(rel release) Result {
	latest := strings.TrimPrefix(rel.TagName, "v")
	if latest == "" {
		latest = "0.0.0"
	}
	res := Result{CurrentVersion: c.current, LatestVersion: latest}

	if !Newer(latest, c.current) {
		log.Printf("Updater: up to date (current %s, latest %s)", c.current, latest)
		res.Message = "You are running the latest version."
		return res
	}
	for _, a := range rel.Assets {
		if a.Name == c.asset {
			log.Printf("Updater: update %s found at %s", latest, a.BrowserDownloadURL)
			res.UpdateAvailable = true
			res.DownloadURL = a.BrowserDownloadURL
			res.ReleaseNotes = rel.Body
			if res.ReleaseNotes == "" {
				res.ReleaseNotes = "No release notes available."
			}
			return res
		}
	}
	log.Printf("Updater: version %s found but asset %q is missing", latest, c.asset)
	res.Message = fmt.Sprintf("Version %s found, but required asset missing.", latest)
	return res
}

// Newer reports whether latest is a strictly higher semantic version than
// current. Either may carry a leading "v". Unparseable versions are never newer.
func Newer(latest, current string) bool {
	l, cur := canonical(latest), canonical(current)
	if !semver.IsValid(l) || !semver.IsValid(cur) {
		return false
	}
	return semver.Compare(l, cur) > 0
}

func canonical(v string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// Download fetches url into the download directory and returns the file path.
// Launching the installer is left to the caller.
func (c *Checker) Download(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("download url is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned %s", resp.Status)
	}

	dst := filepath.Join(c.downloadDir, downloadFileName)
	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write update: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	log.Printf("Updater: downloaded %d bytes to %s", n, dst)
	return dst, nil
}
