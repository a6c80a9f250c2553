package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfman30/doctor-booking/migrations"
)

// Usage:
//
//	migrate             apply pending migrations
//	migrate up
//	migrate down [n]    roll back n migrations (default 1)
//	migrate force <v>   mark version v as applied and clean
//	migrate version
func main() {
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	g, err := migrations.Open(databaseURL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = g.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := g.Up(); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println("migrations complete")
	case "down":
		steps := 1
		if len(os.Args) >= 3 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				log.Fatalf("invalid steps: %v", err)
			}
		}
		if err := g.Down(steps); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", steps)
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := g.Force(version); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("forced version to %d\n", version)
	case "version":
		v, dirty, err := g.Version()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("version %d dirty=%t\n", v, dirty)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}
