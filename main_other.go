//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The global hotkey needs the OS main thread on macOS and Windows, so
// run() executes inside mainthread.Init.
func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
