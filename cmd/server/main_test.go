package main

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerbook/internal/adapter/repository/redis"
	"github.com/iho/ledgerbook/internal/infrastructure/config"
	"github.com/iho/ledgerbook/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerbook/internal/infrastructure/locker"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewLocker(t *testing.T) {
	client := newTestRedis(t)

	tests := []struct {
		backend string
		check   func(t *testing.T, got any)
		wantErr bool
	}{
		{
			backend: "redis",
			check: func(t *testing.T, got any) {
				if _, ok := got.(*redis.AccountLocker); !ok {
					t.Fatalf("expected redis locker, got %T", got)
				}
			},
		},
		{
			backend: "memory",
			check: func(t *testing.T, got any) {
				if _, ok := got.(*locker.MemoryLocker); !ok {
					t.Fatalf("expected memory locker, got %T", got)
				}
			},
		},
		{backend: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.Config{SyncLockBackend: tt.backend, SyncLockTTL: time.Minute}
			got, err := newLocker(cfg, client)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown backend")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestNewEventSink(t *testing.T) {
	client := newTestRedis(t)

	tests := []struct {
		sink    string
		check   func(t *testing.T, got eventpublisher.Publisher)
		wantErr bool
	}{
		{
			sink: "log",
			check: func(t *testing.T, got eventpublisher.Publisher) {
				if _, ok := got.(*eventpublisher.LogPublisher); !ok {
					t.Fatalf("expected log publisher, got %T", got)
				}
			},
		},
		{
			sink: "redis",
			check: func(t *testing.T, got eventpublisher.Publisher) {
				if _, ok := got.(*eventpublisher.RedisStreamPublisher); !ok {
					t.Fatalf("expected redis stream publisher, got %T", got)
				}
			},
		},
		{sink: "kafka", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.sink, func(t *testing.T) {
			cfg := &config.Config{EventSink: tt.sink, EventStreamMaxLen: 10}
			got, err := newEventSink(cfg, client, zerolog.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown sink")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}
