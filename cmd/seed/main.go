package main

import (
	"flag"
	"log"

	"instapurr/config"
	"instapurr/database"
	"instapurr/seed"
)

func main() {
	users := flag.Int("users", 0, "number of demo users to create (0 = all)")
	postsPerUser := flag.Int("posts", 3, "posts created per user")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	if err := seed.Run(db, seed.Options{Users: *users, PostsPerUser: *postsPerUser}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}
