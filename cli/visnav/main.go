// Package main is the visnav command itself.
package main

import (
	"log"
	"os"

	"github.com/openaerial/visnav/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
