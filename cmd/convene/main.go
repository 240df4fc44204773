package main

import (
	"os"

	"horse.fit/convene/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
