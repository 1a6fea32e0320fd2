// Package jwt issues and verifies the bearer tokens whose claims feed session validation.
//
// [Manager] signs and verifies locally configured HS256 or Ed25519 keys. [JWKSVerifier]
// verifies tokens minted by an external identity provider against a remote key set.
// Both satisfy [Verifier] and return [session.Claims].
package jwt
