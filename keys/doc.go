// Package keys manages issuer signing keys on the local filesystem.
//
// Stable:
//   - Seed derivation (DeriveRoleSeed, KeyFromSeed) and Fingerprint.
//
// Experimental:
//   - KeyStore, the filesystem layout and its CBOR record format. These are
//     local-first utilities for the CLI and may change in minor releases.
package keys
