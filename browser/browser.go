// Package browser renders the company map in headless Chrome
package browser

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"suapemap/scraper"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// DefaultPort is used when no free local port can be found
const DefaultPort = 9515

// hideWebdriver removes the navigator.webdriver marker before any page script runs
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Config holds the browser strategy parameters
type Config struct {
	URL          string
	ExecPath     string
	Port         int
	UserAgent    string
	Headless     bool
	WaitSelector string
	WaitTimeout  time.Duration
	Timeout      time.Duration
	Settle       Settler
}

// DefaultConfig returns the settings used against the Suape page
func DefaultConfig(url, execPath string) Config {
	return Config{
		URL:          url,
		ExecPath:     execPath,
		Headless:     true,
		WaitSelector: "div.empresa",
		WaitTimeout:  20 * time.Second,
		Timeout:      3 * time.Minute,
		Settle:       DefaultSettler(),
	}
}

// Source acquires the fully rendered page through chromedp
type Source struct {
	cfg Config
}

// New creates a browser source
func New(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Name identifies the source in logs
func (s *Source) Name() string { return "browser" }

// Acquire renders the page, scrolls until its height stops changing and returns the HTML
func (s *Source) Acquire(ctx context.Context) (string, error) {
	execPath, err := resolveExecPath(s.cfg.ExecPath)
	if err != nil {
		return "", err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	port := ControlPort(s.cfg.Port)
	log.Info().Str("exec", execPath).Int("port", port).Str("url", s.cfg.URL).Msg("launching headless browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.allocatorOptions(execPath, port)...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))
	defer tabCancel()

	err = chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		chromedp.Navigate(s.cfg.URL),
	)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", s.cfg.URL, err)
	}

	if err := s.waitForContent(tabCtx); err != nil {
		return "", err
	}

	height, err := s.cfg.Settle.Settle(tabCtx, tab{})
	if err != nil {
		return "", err
	}
	log.Debug().Int64("height", height).Msg("page height settled")

	var htmlContent string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read rendered HTML: %w", err)
	}
	return htmlContent, nil
}

func (s *Source) waitForContent(ctx context.Context) error {
	waitCtx := ctx
	if s.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
	}
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(s.cfg.WaitSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %q: %w", s.cfg.WaitSelector, err)
	}
	return nil
}

func (s *Source) allocatorOptions(execPath string, port int) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("remote-debugging-port", fmt.Sprint(port)),
		chromedp.WindowSize(1920, 1080),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	return opts
}

// Candidates are the Chrome executables looked up in PATH when no path is configured
var Candidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
}

// resolveExecPath checks that a Chrome executable exists. An empty path tries
// Candidates in order, bare names are looked up in PATH and anything else must
// exist on disk. chromedp speaks CDP to Chrome itself, so a chromedriver binary
// never counts as a browser
func resolveExecPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		for _, name := range Candidates {
			if found, err := exec.LookPath(name); err == nil {
				return found, nil
			}
		}
		return "", scraper.Unavailable("no Chrome executable found in PATH (tried %s); set CHROME_PATH", strings.Join(Candidates, ", "))
	}
	if isWebDriver(path) {
		return "", scraper.Unavailable("%q is a WebDriver server, not Chrome; set CHROME_PATH to a Chrome or Chromium executable", path)
	}
	if !strings.ContainsRune(path, os.PathSeparator) {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", scraper.Unavailable("browser executable %q not found in PATH", path)
		}
		return found, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", scraper.Unavailable("browser executable %q not found", path)
	}
	return path, nil
}

func isWebDriver(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.TrimSuffix(base, ".exe") == "chromedriver"
}

// ControlPort returns port when set, otherwise a free local port, falling back
// to DefaultPort when listening is not permitted
func ControlPort(port int) int {
	if port > 0 {
		return port
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return DefaultPort
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// tab drives scrolling in the chromedp target carried by ctx
type tab struct{}

func (tab) ScrollToBottom(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func (tab) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, err
	}
	return height, nil
}
