package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"lockstep/internal/config"
	"lockstep/internal/server"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  LOCKSTEP - GAME COORDINATOR")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	log.Printf("🎮 Config: %d Hz, %d-%d players/room, frame timeout %s",
		appConfig.Game.TickRate, appConfig.Game.StartPlayers,
		appConfig.Game.MaxPlayers, appConfig.Game.FrameTimeout)
	log.Printf("🛡️ Limits: %.0f msg/s, %d byte messages, %d violations per %s",
		appConfig.Limits.MaxRequestsPerSecond, appConfig.Limits.MaxInputSize,
		appConfig.Limits.MaxViolations, appConfig.Limits.ViolationWindow)

	// Start debug server
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := server.StartDebugServer(server.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	srv := server.New(appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
	log.Println("👋 Goodbye!")
}
