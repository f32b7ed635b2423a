package main

import (
	"os"

	"horse.fit/verso/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
