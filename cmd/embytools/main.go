package main

import (
	"os"

	"github.com/embydev/embytools/internal/cli"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	os.Exit(cli.Execute(Version))
}
