package session

import "musinsacrawler/pkg/browser"

// Login form markup changes without notice; each list is tried in order.
var (
	UsernameLocators = []browser.Locator{
		browser.CSS("input[name='id']"),
		browser.CSS("input[name='userId']"),
		browser.CSS("input[name='loginId']"),
		browser.CSS("input[name='username']"),
		browser.CSS("input[type='text']"),
		browser.CSS("#id"),
		browser.CSS("#userId"),
		browser.CSS("#loginId"),
		browser.CSS("#username"),
	}

	PasswordLocators = []browser.Locator{
		browser.CSS("input[name='pw']"),
		browser.CSS("input[name='password']"),
		browser.CSS("input[name='passwd']"),
		browser.CSS("input[type='password']"),
		browser.CSS("#pw"),
		browser.CSS("#password"),
		browser.CSS("#passwd"),
	}

	SubmitLocators = []browser.Locator{
		browser.CSS(".login-button.btn.btn-primary"),
		browser.CSS("button[type='submit']"),
		browser.CSS("input[type='submit']"),
		browser.CSS(".btn-login"),
		browser.CSS(".login-btn"),
		browser.CSS("#loginBtn"),
		browser.CSS("#login-button"),
		browser.CSS("input[value*='로그인']"),
	}

	// AuthenticatedLocators only render for a signed-in session
	AuthenticatedLocators = []browser.Locator{
		browser.CSS("[data-testid='logout']"),
		browser.CSS(".user-info"),
		browser.WithText("a", "마이페이지"),
	}
)
