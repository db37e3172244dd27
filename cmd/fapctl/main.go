package main

import (
	"os"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
