package main

import (
	"os"

	"github.com/gridshift/carbonsched/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
