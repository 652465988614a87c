package main

import (
	"os"

	"github.com/dshills/vibecheck/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
