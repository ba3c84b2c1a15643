// Package database provides connection management, delete-protection
// reference handling, driver error classification, configuration types,
// logging, health checks, and related utilities built on top of Bun.
package database
