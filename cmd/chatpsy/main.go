package main

import (
	"os"

	"github.com/raaihank/chatpsy/internal/proxy"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	proxy.Version = version
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
