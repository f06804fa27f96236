package services

import (
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/models"
)

func testResponse(name string) *models.CharacterResponse {
	return &models.CharacterResponse{
		Character:       models.CharacterRecord{Name: name, Level: 100, Vocation: "Knight", World: "Antica"},
		Deaths:          []models.DeathRecord{},
		Achievements:    []models.Achievement{},
		OtherCharacters: []models.OtherCharacterSummary{},
	}
}

func TestCacheService_GetPut(t *testing.T) {
	cache := NewCacheService()

	if _, ok := cache.Get("Gandalf"); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Put("Gandalf", testResponse("Gandalf"))

	got, ok := cache.Get("  gandalf ")
	if !ok {
		t.Fatal("expected hit for case and whitespace variant of the key")
	}
	if got.Character.Name != "Gandalf" {
		t.Errorf("cached name = %q, want %q", got.Character.Name, "Gandalf")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestCacheService_ExpiredEntriesAreNeverReturned(t *testing.T) {
	clock := newFakeClock()
	cache := NewCacheServiceWithClock(time.Minute, 10, DefaultCacheMaxBytes, clock.Now)

	cache.Put("Gandalf", testResponse("Gandalf"))
	clock.Advance(59 * time.Second)
	if _, ok := cache.Get("Gandalf"); !ok {
		t.Fatal("entry younger than the TTL should be returned")
	}

	clock.Advance(time.Second)
	if _, ok := cache.Get("Gandalf"); ok {
		t.Fatal("entry at the TTL should be expired")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len = %d", cache.Len())
	}
	if stats := cache.Stats(); stats.Expirations != 1 || stats.Bytes != 0 {
		t.Errorf("expirations = %d, bytes = %d, want 1 and 0", stats.Expirations, stats.Bytes)
	}
}

func TestCacheService_EvictsLeastRecentlyUsedByCount(t *testing.T) {
	cache := NewCacheServiceWithConfig(time.Minute, 2, DefaultCacheMaxBytes)

	cache.Put("Alpha", testResponse("Alpha"))
	cache.Put("Bravo", testResponse("Bravo"))
	cache.Get("Alpha")
	cache.Put("Charlie", testResponse("Charlie"))

	if cache.Contains("Bravo") {
		t.Error("least recently used entry should have been evicted")
	}
	if !cache.Contains("Alpha") || !cache.Contains("Charlie") {
		t.Error("recently used entries should remain")
	}
	if stats := cache.Stats(); stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheService_EvictsByByteCost(t *testing.T) {
	cost := estimateCost(testResponse("Alpha"))
	cache := NewCacheServiceWithConfig(time.Minute, 50, 2*cost+cost/2)

	cache.Put("Alpha", testResponse("Alpha"))
	cache.Put("Bravo", testResponse("Bravo"))
	if cache.Len() != 2 {
		t.Fatalf("len = %d, want 2 before the budget is exceeded", cache.Len())
	}

	cache.Put("Charlie", testResponse("Charlie"))

	if cache.Contains("Alpha") {
		t.Error("oldest entry should be evicted once the byte budget is exceeded")
	}
	stats := cache.Stats()
	if stats.Bytes > stats.MaxBytes {
		t.Errorf("bytes = %d exceeds budget %d", stats.Bytes, stats.MaxBytes)
	}
	if stats.Entries != 2 {
		t.Errorf("entries = %d, want 2", stats.Entries)
	}
}

func TestCacheService_OverwriteKeepsByteAccounting(t *testing.T) {
	cache := NewCacheService()
	response := testResponse("Gandalf")

	cache.Put("Gandalf", response)
	cache.Put("GANDALF", response)

	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}
	if got, want := cache.Stats().Bytes, estimateCost(response); got != want {
		t.Errorf("bytes = %d, want %d", got, want)
	}
}

func TestCacheService_DeleteClearPurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewCacheServiceWithClock(time.Minute, 10, DefaultCacheMaxBytes, clock.Now)

	cache.Put("Alpha", testResponse("Alpha"))
	clock.Advance(30 * time.Second)
	cache.Put("Bravo", testResponse("Bravo"))
	cache.Put("Charlie", testResponse("Charlie"))

	if !cache.Delete("charlie") {
		t.Error("Delete should report an existing entry")
	}
	if cache.Delete("charlie") {
		t.Error("Delete should report a missing entry")
	}

	clock.Advance(45 * time.Second)
	if removed := cache.PurgeExpired(); removed != 1 {
		t.Errorf("PurgeExpired removed %d, want 1", removed)
	}
	if !cache.Contains("Bravo") {
		t.Error("unexpired entry should survive the purge")
	}

	cache.Clear()
	if cache.Len() != 0 || cache.Stats().Bytes != 0 {
		t.Errorf("after Clear len = %d, bytes = %d", cache.Len(), cache.Stats().Bytes)
	}
}

func TestCacheService_IgnoresNilResponse(t *testing.T) {
	cache := NewCacheService()
	cache.Put("Gandalf", nil)
	if cache.Len() != 0 {
		t.Errorf("nil response should not be cached")
	}
}

func TestCacheService_RejectsEntryLargerThanByteBudget(t *testing.T) {
	small := testResponse("Alpha")
	large := testResponse("Alpha")
	comment := strings.Repeat("x", 512)
	large.Character.Comment = &comment

	cache := NewCacheServiceWithConfig(time.Minute, 10, estimateCost(small)+64)
	cache.Put("Alpha", small)
	cache.Put("Bravo", testResponse("Bravo"))
	if cache.Contains("Alpha") {
		t.Fatal("the byte budget fits only one small entry")
	}

	cache.Put("Bravo", large)

	if cache.Contains("Bravo") {
		t.Error("a response larger than the byte budget must not be cached")
	}
	stats := cache.Stats()
	if stats.Entries != 0 || stats.Bytes != 0 {
		t.Errorf("entries %d bytes %d, want an empty cache", stats.Entries, stats.Bytes)
	}

	tiny := NewCacheServiceWithConfig(time.Minute, 10, 100)
	tiny.Put("Gandalf", testResponse("Gandalf"))
	if tiny.Len() != 0 || tiny.Stats().Bytes != 0 {
		t.Errorf("len %d bytes %d under a 100 byte budget", tiny.Len(), tiny.Stats().Bytes)
	}
}
