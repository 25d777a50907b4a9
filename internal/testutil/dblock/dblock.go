// Package dblock serializes tests that share the integration database
// across package test binaries.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:47321"

// lockAddr is the loopback port whose listener is the lock. DDRAMP_TEST_DB_LOCK
// overrides it when two checkouts share a host but not a database.
func lockAddr() string {
	if addr := os.Getenv("DDRAMP_TEST_DB_LOCK"); addr != "" {
		return addr
	}
	return defaultAddr
}

// Acquire blocks until the database lock is held and returns its release func.
func Acquire() func() {
	addr := lockAddr()
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
