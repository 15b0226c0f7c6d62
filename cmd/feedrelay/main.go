package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"feedrelay/internal/app"
	"feedrelay/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to YAML or JSON config")
	once := flag.String("once", "", `process one source by id ("all" for every source) and exit`)
	preview := flag.Bool("preview", false, "with -once: print the items that would be selected without marking or delivering them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: invalid config: %v", err)
	}
	if *preview && *once == "" {
		log.Fatalf("FATAL: -preview requires -once")
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("FATAL: could not start: %v", err)
	}
	if *once != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err = application.RunOnce(ctx, *once, *preview, os.Stdout)
		stop()
		if closeErr := application.Close(); closeErr != nil {
			log.Printf("ERROR: close: %v", closeErr)
		}
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		return
	}
	if err := application.Run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}
