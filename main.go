package main

import (
	"context"
	"log"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	app, err := SetupApp()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	router := BuildRouter(app)

	defer app.Shutdown(context.Background())

	if err := app.Run(router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
