package main

import (
	"whoisindex/internal/app"

	"github.com/charmbracelet/log"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal("indexer terminated", "error", err)
	}
}
