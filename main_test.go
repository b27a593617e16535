package main

import (
	"net"
	"testing"
)

func TestFindAvailablePort(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	port, err := findAvailablePort(busy, 10)
	if err != nil {
		t.Fatalf("findAvailablePort failed: %v", err)
	}
	if port == busy || port > busy+9 {
		t.Errorf("Expected a port after %d, got %d", busy, port)
	}

	if _, err := findAvailablePort(busy, 1); err == nil {
		t.Error("Expected error when the only candidate is busy")
	}
}
