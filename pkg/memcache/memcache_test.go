package memcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/kvstore"
)

func testEntry(key string) *kvstore.Entry {
	return &kvstore.Entry{
		Key:     key,
		Payload: []byte("payload-" + key),
		Metadata: kvstore.Metadata{
			ContentType:  "image/webp",
			ActualFormat: "webp",
		},
	}
}

func TestCache_PutAndGet(t *testing.T) {
	c := New(10)

	if err := c.Put("k1", testEntry("k1"), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got := c.Get("k1")
	if got == nil {
		t.Fatal("Get() = nil, want entry")
	}
	if string(got.Payload) != "payload-k1" {
		t.Errorf("Payload = %s, want payload-k1", got.Payload)
	}
	if got.Metadata.ActualFormat != "webp" {
		t.Errorf("ActualFormat = %s, want webp", got.Metadata.ActualFormat)
	}
}

func TestCache_Get_Miss(t *testing.T) {
	c := New(10)
	if got := c.Get("absent"); got != nil {
		t.Errorf("Get() = %v, want nil", got)
	}
}

func TestCache_Put_RequiresTTL(t *testing.T) {
	c := New(10)

	tests := []struct {
		name string
		ttl  time.Duration
	}{
		{"zero ttl", 0},
		{"negative ttl", -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Put("k", testEntry("k"), tt.ttl); err != ErrTTLRequired {
				t.Errorf("Put() error = %v, want ErrTTLRequired", err)
			}
		})
	}
}

func TestCache_Get_ExpiredEntryRemoved(t *testing.T) {
	c := New(10)

	if err := c.Put("k1", testEntry("k1"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := c.Get("k1"); got != nil {
		t.Errorf("Get() after expiry = %v, want nil", got)
	}
	// Lazy eviction removed it entirely.
	if c.Len() != 0 {
		t.Errorf("Len() after expired Get = %d, want 0", c.Len())
	}
}

func TestCache_Has(t *testing.T) {
	c := New(10)

	if c.Has("k1") {
		t.Error("Has() = true before Put")
	}

	c.Put("k1", testEntry("k1"), time.Minute)
	if !c.Has("k1") {
		t.Error("Has() = false after Put")
	}

	c.Put("k2", testEntry("k2"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if c.Has("k2") {
		t.Error("Has() = true for expired entry")
	}
}

func TestCache_CapacityBatchEviction(t *testing.T) {
	// Capacity 10: the 11th insert evicts the oldest 2 (20% of capacity)
	// in one batch.
	c := New(10)

	for i := 1; i <= 11; i++ {
		key := fmt.Sprintf("k%02d", i)
		if err := c.Put(key, testEntry(key), time.Minute); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	if c.Len() != 9 {
		t.Fatalf("Len() after overflow = %d, want 9", c.Len())
	}
	// Oldest two are gone, the rest survive.
	for _, key := range []string{"k01", "k02"} {
		if c.Has(key) {
			t.Errorf("oldest entry %s should have been evicted", key)
		}
	}
	for i := 3; i <= 11; i++ {
		key := fmt.Sprintf("k%02d", i)
		if !c.Has(key) {
			t.Errorf("entry %s should have survived eviction", key)
		}
	}
}

func TestCache_Put_OverwriteKeepsPosition(t *testing.T) {
	c := New(10)

	for i := 1; i <= 10; i++ {
		key := fmt.Sprintf("k%02d", i)
		c.Put(key, testEntry(key), time.Minute)
	}

	// Overwriting k01 must not change its insertion position, so it is
	// still the oldest and first to go on overflow.
	c.Put("k01", testEntry("k01-v2"), time.Minute)
	if c.Len() != 10 {
		t.Fatalf("Len() after overwrite = %d, want 10", c.Len())
	}

	c.Put("k11", testEntry("k11"), time.Minute)
	if c.Has("k01") {
		t.Error("overwritten k01 kept its insertion position and should be evicted first")
	}
}

func TestCache_EvictExpired(t *testing.T) {
	c := New(10)

	c.Put("short1", testEntry("short1"), 10*time.Millisecond)
	c.Put("long", testEntry("long"), time.Minute)
	c.Put("short2", testEntry("short2"), 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	if got := c.EvictExpired(); got != 2 {
		t.Errorf("EvictExpired() = %d, want 2", got)
	}
	if !c.Has("long") {
		t.Error("live entry was swept")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(10)
	c.Put("k1", testEntry("k1"), time.Minute)
	c.Put("k2", testEntry("k2"), time.Minute)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if c.Get("k1") != nil {
		t.Error("Get() after Clear returned an entry")
	}
}
