package main

import (
	"fmt"
	"os"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(burlerr.ExitCode(err))
	}
}
