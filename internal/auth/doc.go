// Package auth handles accounts, password hashing and access tokens.
//
// Passwords and reset codes are hashed with PBKDF2-SHA256 in the
// pbkdf2_sha256$iterations$salt$digest format. Access tokens are HS256
// JWTs validated by signature only. Sign-in is restricted to the
// configured admin identity; EnsureDefaultAdmin bootstraps that account
// at startup and keeps it in sync with configuration changes.
package auth
