// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

// Options controls the browser process.
type Options struct {
	Headless bool
	Args     []string
	// Install runs the playwright driver/browser download on first use.
	Install bool
}

// Manager handles the browser process lifecycle and page creation using
// Playwright. It implements capture.Engine.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *zap.Logger
	opts    Options

	wg sync.WaitGroup // open pages, drained before the browser shuts down

	initOnce sync.Once
	initErr  error
}

const playwrightInstallTimeout = 5 * time.Minute

// NewManager creates a browser manager. Initialization is deferred until the
// first page is requested.
func NewManager(opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		opts:   opts,
	}
}

// initialize starts the Playwright driver and launches the browser instance.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Initializing Playwright and launching browser...")

		if m.opts.Install {
			if err := m.ensureInstallation(ctx); err != nil {
				m.initErr = err
				return
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			m.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}
		m.pw = pw

		browser, err := pw.Chromium.Launch(m.prepareLaunchOptions())
		if err != nil {
			pw.Stop() // Clean up the driver if browser launch fails.
			m.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}
		m.browser = browser

		m.logger.Info("Browser manager initialized.", zap.String("browser_version", browser.Version()))
	})
	return m.initErr
}

func (m *Manager) ensureInstallation(ctx context.Context) error {
	m.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	// The install call blocks, so run it in a goroutine under the timeout.
	errCh := make(chan error, 1)
	go func() {
		options := &playwright.RunOptions{
			Browsers: []string{"chromium"},
		}
		if err := playwright.Install(options); err != nil {
			errCh <- fmt.Errorf("failed to install playwright browsers: %w", err)
		} else {
			errCh <- nil
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func (m *Manager) prepareLaunchOptions() playwright.BrowserTypeLaunchOptions {
	// Default arguments for container stability.
	defaultArgs := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
		Args:     append(defaultArgs, m.opts.Args...),
		Timeout:  playwright.Float(60000),
	}
}

// NewPage creates a fresh isolated browser context with a single page.
// Closing the returned page tears the whole context down.
func (m *Manager) NewPage(ctx context.Context) (capture.Page, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	bctx, err := m.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	m.wg.Add(1)
	p := newPage(pg, bctx, m.logger)
	p.onClose = m.wg.Done
	m.logger.Info("New browsing session created.")
	return p, nil
}

// Shutdown waits for open pages to close and stops the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.pw == nil {
		m.logger.Info("Manager not initialized, skipping shutdown sequence.")
		return nil
	}
	m.logger.Info("Shutting down browser manager.")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for pages to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	var shutdownErr error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.logger.Error("Failed to close browser instance.", zap.Error(err))
			shutdownErr = fmt.Errorf("failed to close browser: %w", err)
		}
	}
	if err := m.pw.Stop(); err != nil {
		m.logger.Error("Failed to stop Playwright driver.", zap.Error(err))
		if shutdownErr == nil {
			shutdownErr = fmt.Errorf("failed to stop playwright driver: %w", err)
		}
	}

	m.logger.Info("Browser manager shutdown complete.")
	return shutdownErr
}
