//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/config"
	"github.com/fenilmodi00/tibia-lookup-backend/database"
	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/google/uuid"
)

// Sample character used to exercise the full upstream parse
const sampleCharacter = "Bubble"

func main() {
	fmt.Printf("🏥 Tibia Lookup Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	healthScore := 0
	totalTests := 4

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("❌ Configuration invalid: %v\n", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Test 1: TibiaData reachability
	fmt.Print("📡 TibiaData API: ")
	monitor, err := shared.NewConnectivityMonitor(cfg.TibiaDataBaseURL, cfg.ConnectTimeout)
	if err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else if !monitor.Probe(ctx) {
		fmt.Println("❌ FAILED (host unreachable)")
	} else {
		fmt.Println("✅ OK")
		healthScore++
	}

	// Test 2: Character lookup
	fmt.Print("🔎 Character lookup: ")
	factory := shared.NewHTTPClientFactory()
	defer factory.CleanupAllClients()
	client := services.NewTibiaDataClient(cfg.TibiaDataBaseURL,
		factory.CreateAPIClient(cfg.ConnectTimeout, cfg.RequestTimeout), nil, nil)
	if response, err := client.FetchCharacter(ctx, sampleCharacter); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%s, level %d, %d deaths)\n", response.Character.Name, response.Character.Level, len(response.Deaths))
		healthScore++
	}

	// Test 3: Database
	fmt.Print("🗄️  Database: ")
	store, err := database.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%s)\n", store.Driver())
		healthScore++
		defer store.Close()
	}

	// Test 4: Recent searches round trip
	fmt.Print("📊 Recent searches: ")
	if store == nil {
		fmt.Println("❌ SKIPPED (no database)")
	} else {
		key := services.RecentSearchesKeyFor("healthcheck-" + uuid.NewString())
		recent := services.NewRecentSearches(store, key)
		if err := recent.Load(ctx); err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
		} else if _, err := recent.Clear(ctx); err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
		} else {
			fmt.Println("✅ OK")
			healthScore++
		}
	}

	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	if healthScore == totalTests {
		fmt.Printf("🎉 SYSTEM HEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else if healthScore >= totalTests/2 {
		fmt.Printf("⚠️  SYSTEM DEGRADED: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else {
		fmt.Printf("❌ SYSTEM UNHEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	fmt.Printf("⏰ Check completed at: %s\n", time.Now().Format("15:04:05"))
}
