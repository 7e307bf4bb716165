package main

import (
	"log"

	app "github.com/savostin/betfair-stream-proxy/internal"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
