package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"musinsacrawler/pkg/browser"
	"musinsacrawler/pkg/config"
	errs "musinsacrawler/pkg/errors"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/retry"
	"musinsacrawler/pkg/runlog"
)

var (
	// ErrUsernameFieldNotFound means no username locator matched
	ErrUsernameFieldNotFound = errors.New("username field not found")
	// ErrPasswordFieldNotFound means no password locator matched
	ErrPasswordFieldNotFound = errors.New("password field not found")
	// ErrNotAuthenticated means the submit settled but no signed-in marker appeared
	ErrNotAuthenticated = errors.New("still on login page after submit")
)

// Credentials are the account secrets for one run. They are never logged.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %s}", logger.MaskUsername(c.Username))
}

// State is the session bookkeeping for one run
type State struct {
	Attempts      int
	Authenticated bool
}

// Timings are the fixed waits of a login attempt
type Timings struct {
	// PageSettle follows navigation to the login page
	PageSettle time.Duration
	// LocateWait bounds the search for each form field
	LocateWait time.Duration
	// SubmitSettle follows form submission
	SubmitSettle time.Duration
	// VerifyWait bounds the search for a signed-in marker
	VerifyWait time.Duration
	Poll       time.Duration
}

// DefaultTimings returns the waits used against the live site
func DefaultTimings(cfg *config.Config) Timings {
	return Timings{
		PageSettle:   2 * time.Second,
		LocateWait:   cfg.ImplicitWaitDuration(),
		SubmitSettle: 5 * time.Second,
		VerifyWait:   5 * time.Second,
		Poll:         browser.DefaultPoll,
	}
}

// Controller signs the browser session in
type Controller struct {
	browser  browser.Browser
	cfg      *config.Config
	log      logger.Logger
	recorder runlog.Sink
	timings  Timings
	backoff  retry.BackoffStrategy
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRecorder sets the run log sink
func WithRecorder(s runlog.Sink) Option {
	return func(c *Controller) { c.recorder = s }
}

// WithTimings overrides the fixed waits
func WithTimings(t Timings) Option {
	return func(c *Controller) { c.timings = t }
}

// WithBackoff overrides the delay between failed attempts
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Controller) { c.backoff = b }
}

// WithSleep replaces every wait, including backoff delays
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// NewController creates a Controller driving b
func NewController(b browser.Browser, cfg *config.Config, opts ...Option) *Controller {
	c := &Controller{
		browser: b,
		cfg:     cfg,
		timings: DefaultTimings(cfg),
		backoff: retry.DefaultLinearBackoff(),
		sleep:   retry.Wait,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log).WithField("component", "session")
	c.recorder = runlog.OrDiscard(c.recorder)
	return c
}

// Authenticate makes up to retry_attempts login attempts. Exhausting them
// returns an auth error with reason max_attempts_exceeded.
func (c *Controller) Authenticate(ctx context.Context, creds Credentials) (State, error) {
	var state State

	logger.LogStage(c.log, "authenticate", map[string]interface{}{
		"username":     logger.MaskUsername(creds.Username),
		"max_attempts": c.cfg.RetryAttempts,
	})

	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		state.Attempts = attempt
		err := c.attempt(ctx, creds)

		fields := map[string]interface{}{
			"attempt": attempt,
			"success": err == nil,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		c.recorder.Record(runlog.EventAuthAttempt, fmt.Sprintf("login attempt %d/%d", attempt, c.cfg.RetryAttempts), fields)
		return err
	}, retry.Config{
		MaxAttempts: c.cfg.RetryAttempts,
		Backoff:     c.backoff,
		Sleep:       c.sleep,
		Logger:      c.log,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.WithError(err).WarnWithFields("Login attempt failed", map[string]interface{}{
				"attempt":    attempt,
				"retry_in":   delay.String(),
				"next_trial": attempt + 1,
			})
		},
	})

	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			err = errs.MaxAttemptsExceeded(exhausted.Attempts, exhausted.Last)
		}
		c.recorder.Record(runlog.EventAuthResult, "authentication failed", map[string]interface{}{
			"attempts": state.Attempts,
			"error":    err.Error(),
		})
		c.log.WithError(err).Error("Authentication failed")
		return state, err
	}

	state.Authenticated = true
	c.recorder.Record(runlog.EventAuthResult, "authenticated", map[string]interface{}{
		"attempts": state.Attempts,
	})
	c.log.InfoWithFields("Authenticated", map[string]interface{}{"attempts": state.Attempts})
	return state, nil
}

// attempt runs one login: open, fill, submit, settle, verify
func (c *Controller) attempt(ctx context.Context, creds Credentials) error {
	if err := c.browser.Navigate(ctx, c.cfg.Site.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := c.sleep(ctx, c.timings.PageSettle); err != nil {
		return err
	}

	username, err := c.locate(ctx, UsernameLocators, ErrUsernameFieldNotFound)
	if err != nil {
		return err
	}
	if err := c.browser.Type(ctx, username, creds.Username); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}

	password, err := c.locate(ctx, PasswordLocators, ErrPasswordFieldNotFound)
	if err != nil {
		return err
	}
	if err := c.browser.Type(ctx, password, creds.Password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}

	if err := c.submit(ctx, password); err != nil {
		return err
	}
	if err := c.sleep(ctx, c.timings.SubmitSettle); err != nil {
		return err
	}

	return c.verify(ctx)
}

func (c *Controller) locate(ctx context.Context, locators []browser.Locator, notFound error) (browser.Element, error) {
	el, ok, err := browser.WaitFor(ctx, c.browser, locators, browser.Visible, c.timings.LocateWait, c.timings.Poll)
	if err != nil {
		return browser.Element{}, err
	}
	if !ok {
		return browser.Element{}, notFound
	}
	c.log.DebugWithFields("Located form field", map[string]interface{}{"selector": el.Selector})
	return el, nil
}

// submit clicks the first usable submit control, or presses Enter in the
// password field when there is none.
func (c *Controller) submit(ctx context.Context, password browser.Element) error {
	button, ok, err := browser.FindFirst(ctx, c.browser, SubmitLocators, browser.Interactable)
	if err != nil {
		return err
	}
	if ok {
		if err := c.browser.Click(ctx, button); err != nil {
			return fmt.Errorf("click %s: %w", button.Selector, err)
		}
		return nil
	}

	c.log.Debug("No submit control found, pressing Enter")
	if err := c.browser.PressEnter(ctx, password); err != nil {
		return fmt.Errorf("submit with enter: %w", err)
	}
	return nil
}

// verify passes once the location leaves the login surface or a
// signed-in marker shows up within VerifyWait.
func (c *Controller) verify(ctx context.Context) error {
	location, err := c.browser.Location(ctx)
	if err == nil && !strings.Contains(location, c.cfg.Site.LoginPattern) {
		return nil
	}

	_, ok, err := browser.WaitFor(ctx, c.browser, AuthenticatedLocators, nil, c.timings.VerifyWait, c.timings.Poll)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthenticated
	}
	return nil
}
