package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"gabsload"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestMain_Profiles(t *testing.T) {
	withArgs(t, "profiles", "--log-level", "error")
	assert.Equal(t, 0, Main())
}

func TestMain_UnknownTestType(t *testing.T) {
	withArgs(t, "run", "marathon", "--log-level", "error")
	assert.Equal(t, 1, Main())
}

func TestMain_UnreachableTarget(t *testing.T) {
	withArgs(t, "check", "--base-url", "http://127.0.0.1:1/api", "--request-timeout", "1s", "--log-level", "error")
	assert.Equal(t, 1, Main())
}
