package main

import (
	"os"
	"runtime"

	"analyser/cmd"
	applog "analyser/internal/log"
	"analyser/pkg/build"
)

// main initialises build metadata and hands over to the command line.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v", err)
	}

	// One thread for capture and analysis, one for the UI and I/O.
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
