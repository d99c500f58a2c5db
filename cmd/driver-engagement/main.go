package main

import (
	"os"

	"driver-engagement-audit/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
