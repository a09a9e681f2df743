package main

import (
	"os"

	"github.com/randalmurphal/fleet/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
