package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metabolite-assistant-be/internal/bootstrap"
	"metabolite-assistant-be/internal/config"
	"metabolite-assistant-be/internal/server"
	"metabolite-assistant-be/internal/tracer"

	"github.com/fatih/color"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	if err := container.Start(); err != nil {
		log.Fatalf("Unable to start background services: %v", err)
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)
	printBanner(cfg)

	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	container.Shutdown(ctx)
}

func printBanner(cfg *config.Config) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	label := color.New(color.FgHiBlack).SprintFunc()
	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgYellow).SprintFunc()

	status := func(value string) string {
		if value == "" {
			return off("disabled")
		}
		return on(value)
	}

	database := off("memory")
	if cfg.Database.Connection != "" {
		database = on("postgres")
	}

	fmt.Println(title("Metabolite Assistant API"))
	fmt.Printf("  %s %s\n", label("env     "), cfg.App.Environment)
	fmt.Printf("  %s %s\n", label("port    "), cfg.App.Port)
	fmt.Printf("  %s %s (%s)\n", label("provider"), cfg.Assistant.Provider, cfg.Assistant.Endpoint)
	fmt.Printf("  %s %s\n", label("archive "), database)
	fmt.Printf("  %s %s\n", label("nats    "), status(cfg.App.NatsURL))
	fmt.Printf("  %s %s\n", label("redis   "), status(cfg.App.RedisURL))
}
