package guard

import (
	"context"
	"testing"
	"time"
)

// BenchmarkPool_AcquireRelease measures uncontended slot turnover.
func BenchmarkPool_AcquireRelease(b *testing.B) {
	p := NewPool(PoolConfig{MaxConnections: 10})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		slot, _ := p.Acquire(ctx, time.Second)
		p.Release(slot)
	}
}

// BenchmarkPool_Contended measures slot turnover under contention.
func BenchmarkPool_Contended(b *testing.B) {
	p := NewPool(PoolConfig{MaxConnections: 4})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			slot, err := p.Acquire(ctx, time.Second)
			if err != nil {
				b.Error(err)
				return
			}
			p.Release(slot)
		}
	})
}

// BenchmarkCircuit_Allow measures the closed-state admission check.
func BenchmarkCircuit_Allow(b *testing.B) {
	c := NewCircuit(CircuitConfig{FailureThreshold: 1000})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Allow()
	}
}

// BenchmarkExecutor_Execute measures the full protection chain on the
// happy path.
func BenchmarkExecutor_Execute(b *testing.B) {
	e := NewExecutor(Config{MaxConnections: 10})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkExecutor_Concurrent measures parallel protected calls.
func BenchmarkExecutor_Concurrent(b *testing.B) {
	e := NewExecutor(Config{MaxConnections: 16})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = e.Execute(ctx, func(ctx context.Context) error {
				return nil
			})
		}
	})
}

// BenchmarkRetry_Delay measures backoff computation.
func BenchmarkRetry_Delay(b *testing.B) {
	r := NewRetry(RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Delay(i%8 + 1)
	}
}
