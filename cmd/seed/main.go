// Command main runs the database seeder and prints development tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"booking/internal/bootstrap"
	"booking/internal/config"
	"booking/internal/middleware"
	"booking/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	flag.IntVar(&opts.FacultyPerOrg, "faculty", opts.FacultyPerOrg, "Faculty members per organization")
	flag.IntVar(&opts.SupervisorsPerOrg, "supervisors", opts.SupervisorsPerOrg, "Supervisors per organization")
	flag.IntVar(&opts.ResourcesPerOrg, "resources", opts.ResourcesPerOrg, "Resources per organization")
	flag.IntVar(&opts.RequestsPerFaculty, "requests", opts.RequestsPerFaculty, "Pending requests per faculty member")
	flag.Int64Var(&opts.Seed, "seed", 0, "Random seed (0 picks one)")
	flag.BoolVar(&opts.Clean, "clean", true, "Clean database before seeding")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev tokens")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ServiceName: "booking-seed"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	res, err := seed.Seed(ctx, rt.DB, opts, time.Now())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d resources and %d pending requests", res.Resources, res.Requests)

	fmt.Println("Development tokens (Authorization: Bearer <token>):")
	for _, u := range res.Users {
		token, err := middleware.IssueToken(cfg.JWTSecret, u.ID, u.Role, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to sign token for %s: %v", u.Email, err)
		}
		fmt.Printf("  %-10s %-4s %-40s %s\n", u.Role, u.Organization, u.Email, token)
	}
}
