package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/trigger"
)

const timeFormat = "15:04:05.000"

func main() {
	var (
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "TRIGGERS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		worldName  = flag.String("world", "", "World filter for location events")
		limit      = flag.Int("limit", 0, "Maximum number of events (0 = unlimited)")
		duration   = flag.Duration("for", 10*time.Second, "How long to collect events for stats")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	filter := eventbus.Filter{Types: parseStringList(*eventTypes)}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, filter, *worldName, *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(ctx, bus, filter, *duration); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
}

// tailEvents выводит события в реальном времени
func tailEvents(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter, worldName string, limit int) error {
	fmt.Printf("🎬 Tailing trigger events (limit: %d)\n", limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		if worldName != "" && !inWorld(ev, worldName) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		printEvent(ev)
		count++
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()

	mu.Lock()
	fmt.Printf("\n📊 Total events: %d\n", count)
	mu.Unlock()
	return nil
}

// showStats собирает события за окно и выводит количество по типам
func showStats(ctx context.Context, bus eventbus.EventBus, filter eventbus.Filter, window time.Duration) error {
	fmt.Printf("📊 Collecting trigger events for %s\n", window)

	var (
		mu     sync.Mutex
		counts = make(map[string]int)
	)
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		counts[ev.EventType]++
		mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	mu.Lock()
	defer mu.Unlock()

	types := make([]string, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	fmt.Println("\n📋 Events by type:")
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, counts[t])
	}
	fmt.Printf("\n📊 Total events: %d\n", total)
	return nil
}

// printEvent выводит одно событие
func printEvent(ev *eventbus.Envelope) {
	ts := ev.Timestamp.Local().Format(timeFormat)
	fmt.Printf("[%s] %-17s %s\n", ts, ev.EventType, describe(ev))
}

func describe(ev *eventbus.Envelope) string {
	switch ev.EventType {
	case eventbus.EventTriggerSet, eventbus.EventTriggerRemoved:
		var p trigger.LocationEvent
		if err := ev.Decode(&p); err != nil {
			return fmt.Sprintf("⚠️ bad payload: %v", err)
		}
		return fmt.Sprintf("%s@%d,%d,%d slot=%d", p.World, p.X, p.Y, p.Z, p.Slot)

	case eventbus.EventTriggerReloaded, eventbus.EventTriggerSaved:
		var p trigger.BatchEvent
		if err := ev.Decode(&p); err != nil {
			return fmt.Sprintf("⚠️ bad payload: %v", err)
		}
		return fmt.Sprintf("loaded=%d failed=%d", p.Loaded, p.Failed)

	case eventbus.EventTriggerPasted:
		var p trigger.PasteEvent
		if err := ev.Decode(&p); err != nil {
			return fmt.Sprintf("⚠️ bad payload: %v", err)
		}
		return fmt.Sprintf("%s %s -> %s (actor %s)", p.Mode, p.From, p.To, p.Actor)
	}
	return string(ev.Payload)
}

// inWorld проверяет мир для событий с координатой; остальные события пропускаются всегда
func inWorld(ev *eventbus.Envelope, worldName string) bool {
	if ev.EventType != eventbus.EventTriggerSet && ev.EventType != eventbus.EventTriggerRemoved {
		return true
	}
	var p trigger.LocationEvent
	if err := ev.Decode(&p); err != nil {
		return false
	}
	return p.World == worldName
}

// parseStringList разбирает строку с запятыми в список
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
