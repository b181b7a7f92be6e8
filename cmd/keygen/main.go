package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/covers-scheduler-api/pkg/auth"
	"github.com/arnavshah/covers-scheduler-api/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <userID>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.APIMasterSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in environment or .env")
		os.Exit(1)
	}

	// JWT secret is unused here
	a, err := auth.New("unused", cfg.APIMasterSecret)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	userID := os.Args[1]
	fmt.Printf("Generated Key for %s:\n%s\n", userID, a.GenerateAPIKey(userID))
}
