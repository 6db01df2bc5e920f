// Package jwt signs and verifies access and refresh tokens.
//
// Each token kind is served by its own [Manager] with a distinct secret,
// issuer and audience, so a refresh token can never be presented as an
// access token or the other way round. HS256 is the default algorithm;
// Ed25519 is available for deployments that distribute public keys.
//
// # What this package must NOT do
//
//   - Touch Redis or any other store.
//   - Decide whether a token is revoked. Blacklist and rotation state live
//     in the session package.
package jwt
