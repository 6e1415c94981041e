package main

import (
	"os"

	"github.com/obot-platform/pagerduty-app/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
