package main

import (
	"flag"
	"fmt"
	"os"

	"stride/internal/di"
	"stride/internal/structures"
)

func main() {
	var flags structures.CliFlags
	flag.StringVar(&flags.ConfigPath, "c", "config/config.yaml", "path to the configuration file")
	flag.BoolVar(&flags.DebugMode, "d", false, "enable debug mode")
	flag.Parse()

	if _, err := di.InitApp(&flags); err != nil {
		fmt.Fprintf(os.Stderr, "stride: %s\n", err)
		os.Exit(1)
	}
}
