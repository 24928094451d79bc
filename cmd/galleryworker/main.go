package main

import (
	"flag"
	"log"

	"github.com/avetikov/GalleryWorker/internal/app"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	application, err := app.New(*configPath)
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}

	if err := application.Start(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
