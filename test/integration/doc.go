// Package integration contains integration tests for the makerspace dashboard.
//
// These tests use testcontainers to spin up real dependencies (Redis) and check
// the response cache, role lookups and rate limiting against them.
package integration
