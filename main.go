// Tangle - link and inclusion graph builder for static document trees.
//
// Tangle scans a published tree of hypertext, stylesheets, text and
// images, and records for every path whether it exists, what refers to
// it, and how, so broken references and orphaned files can be found.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Benny93/tangle/cmd"
)

func main() {
	// A .env file is optional; TANGLE_* variables may come from it.
	_ = godotenv.Load()

	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
