package main

import (
	"os"

	"github.com/DarthPollos/CV-Compare-Project/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
