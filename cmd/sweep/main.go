// Command sweep runs one SLA breach sweep and exits. Schedule it from cron when
// the server runs with SLA_SWEEP_ENABLED=false.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"booking/internal/bootstrap"
	"booking/internal/config"
	"booking/internal/middleware"
	"booking/internal/notifications"
	"booking/internal/repository"
	"booking/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	timeout := flag.Duration("timeout", time.Minute, "Maximum time the sweep may take")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ServiceName: "booking-sweep", SkipSchema: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()

	lifecycle := service.NewLifecycleService(service.LifecycleDeps{
		Requests:  repository.NewRequestRepository(rt.DB),
		Resources: repository.NewResourceRepository(rt.DB),
		Users:     repository.NewUserRepository(rt.DB),
		Events:    notifications.NewNotifier(rt.Redis),
	})

	// Same lock as the in-process sweeper, so a cron run never overlaps a replica.
	sweeper := service.NewBreachSweeper(lifecycle.SweepBreaches, rt.Redis, cfg.SweepInterval)
	marked := sweeper.RunOnce(ctx)
	middleware.Logger.InfoContext(ctx, "sweep finished", "marked", marked)
	return nil
}
