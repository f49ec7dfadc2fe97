// Package jwt issues and verifies the HS256 session tokens handed to clients
// after login. Verification pins the algorithm, checks issuer and audience,
// and applies no expiry leeway unless one is configured.
package jwt
