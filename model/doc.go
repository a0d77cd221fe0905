// Package model defines the boundary types the CLI and other API layers
// serialize. Payload bytes and their CIDs are unaffected by any projection
// here.
package model
