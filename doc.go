// Package main is the entry point for the go-admin-template binary, a
// web-based application template providing authentication, user profiles
// and role-based access control behind a JSON API.
package main
