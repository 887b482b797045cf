// Command main runs the database seeder for Peloton.
package main

import (
	"flag"
	"log"

	"peloton/internal/config"
	"peloton/internal/database"
	"peloton/internal/seed"
)

func main() {
	// Parse command line flags
	numRiders := flag.Int("riders", 50, "Number of riders to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	numMessages := flag.Int("messages", 300, "Number of chat messages to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext passwords (dev only, much faster)")
	profilePath := flag.String("profile", "", "Apply a YAML seed profile (overrides other flags)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	opts := seed.Options{
		NumRiders:   *numRiders,
		NumPosts:    *numPosts,
		NumMessages: *numMessages,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
	}

	if *profilePath != "" {
		profile, err := seed.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("❌ Failed to load seed profile: %v", err)
		}
		log.Printf("Applying profile %q (ignoring other flags)\n", profile.Name)
		opts = profile.Options()
	} else {
		log.Printf("Target: %d riders, %d posts, %d messages, clean=%v\n",
			opts.NumRiders, opts.NumPosts, opts.NumMessages, opts.ShouldClean)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Println("📧 All test riders have the password: password123")
}
