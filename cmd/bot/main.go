package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lockstep/internal/client"
	"lockstep/internal/protocol"
)

// A headless scripted player: joins a room, waits for the match to
// start, and submits a repeating movement pattern at tick cadence.
// Useful for smoke-testing a server and for filling rooms in local
// development.
func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8765/ws", "server websocket URL")
		playerID = flag.String("player", fmt.Sprintf("bot-%d", os.Getpid()), "player id")
		roomID   = flag.String("room", "lobby", "room id")
		ticks    = flag.Int("ticks", 300, "inputs to send before leaving (0 = forever)")
		rate     = flag.Int("rate", 30, "inputs per second")
	)
	flag.Parse()

	pattern := []protocol.Flags{
		protocol.FlagMoveRight,
		protocol.FlagMoveRight | protocol.FlagJump,
		protocol.FlagMoveLeft,
		protocol.FlagMoveDown,
		0,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{URL: *url, PlayerID: *playerID, RoomID: *roomID})
	if err := c.Dial(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("🤖 %s joined %s, waiting for players", *playerID, *roomID)

	if err := c.WaitStart(ctx); err != nil {
		log.Fatalf("❌ Match never started: %v", err)
	}
	log.Printf("🚀 Match started, sending inputs at %d/s", *rate)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			c.Leave()
			log.Println("👋 Interrupted, left room")
			return
		case <-c.Done():
			log.Printf("📡 Connection closed: %v", c.Err())
			return
		case <-ticker.C:
			flags := pattern[sent%len(pattern)]
			fid, err := c.SendInput(flags, 0, 0)
			if err != nil {
				log.Printf("⚠️ Input for frame %d failed: %v", fid, err)
				return
			}
			sent++
			if sent%150 == 0 {
				p := c.Predictor()
				log.Printf("📊 frame %d, %d rollbacks, %d pending, hash %s",
					c.LastFrame(), p.Rollbacks(), p.Pending(),
					p.State().ComputeStateHash()[:8])
			}
			if *ticks > 0 && sent >= *ticks {
				c.Leave()
				log.Printf("✅ Sent %d inputs, leaving", sent)
				return
			}
		}
	}
}
