// Package uniuri generates cryptographically secure random strings suitable
// for use as unique identifiers, session IDs and anti-forgery tokens.
package uniuri
