// Command segcast runs the segment-and-forecast pipeline over a CSV file
// without the API service, or prints the lifecycle events the service
// publishes.
//
//	segcast run -file data.csv -target load -steps 4
//	segcast watch -config config.yaml
package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: segcast <run|watch> [flags]")
	fmt.Fprintln(os.Stderr, "  run    preprocess, train and forecast one CSV file")
	fmt.Fprintln(os.Stderr, "  watch  print project lifecycle events from the configured queue")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:], os.Stdout)
	case "watch":
		err = watchCommand(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
