// cmd/mbwrite/main.go
package main

import (
	"os"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
