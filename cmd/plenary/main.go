package main

import (
	"os"

	"hemicycle.dev/plenary/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
