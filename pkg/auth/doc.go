// Package auth stores and retrieves storefront accounts.
//
// Accounts are looked up in order in the system keychain (go-keyring), an
// AES-GCM encrypted file whose key is derived with PBKDF2, and finally the
// MUSINSA_ID / MUSINSA_PASSWORD environment variables. Passwords never leave
// this package except as session.Credentials handed to the login flow.
package auth
