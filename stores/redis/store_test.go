package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewStore(client, "flavorai:")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSetGetClear(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx); err != nil || ok {
		t.Fatalf("Get() on empty redis = %v, %v; want false, nil", ok, err)
	}

	if err := store.Set(ctx, "t1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := mr.Get("flavorai:token")
	if err != nil || got != "t1" {
		t.Errorf("raw key = %q, %v; want t1", got, err)
	}

	token, ok, err := store.Get(ctx)
	if err != nil || !ok || token != "t1" {
		t.Fatalf("Get() = %q, %v, %v; want t1, true, nil", token, ok, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if mr.Exists("flavorai:token") {
		t.Error("Clear() should delete the key")
	}
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Dial("redis://"+mr.Addr(), "p:")
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer store.Close()

	if err := store.Set(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("p:token") {
		t.Error("token should be stored under the configured prefix")
	}
}

func TestDial_BadURL(t *testing.T) {
	if _, err := Dial("not a url", ""); err == nil {
		t.Error("Dial() should fail on a malformed URL")
	}
}

func TestGet_ServerDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, _, err := store.Get(context.Background()); err == nil {
		t.Error("Get() should surface connection errors")
	}
}
