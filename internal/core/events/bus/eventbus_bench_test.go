package bus

import (
	"strconv"
	"sync/atomic"
	"testing"
)

func benchEvent(typ string) Event {
	return NewEvent(typ, "bench", nil)
}

// countingHandler increments a counter so the compiler cannot eliminate the
// delivery path.
func countingHandler(c *int64) EventHandler {
	return func(Event) error {
		atomic.AddInt64(c, 1)
		return nil
	}
}

func BenchmarkPublishSingleSubscriber(b *testing.B) {
	bus := New()
	var c int64
	_, _ = bus.Subscribe("tick", countingHandler(&c))
	e := benchEvent("tick")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(e)
	}
}

func BenchmarkPublishManySubscribers(b *testing.B) {
	for _, subs := range []int{1, 4, 16, 64} {
		b.Run("subs="+strconv.Itoa(subs), func(b *testing.B) {
			bus := New()
			var c int64
			for i := 0; i < subs; i++ {
				_, _ = bus.Subscribe("tick", countingHandler(&c))
			}
			e := benchEvent("tick")
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = bus.Publish(e)
			}
		})
	}
}

func BenchmarkPublishTopics(b *testing.B) {
	bus := New()
	var c int64
	const topics = 8
	names := make([]string, topics)
	for t := 0; t < topics; t++ {
		names[t] = "t" + strconv.Itoa(t)
		_, _ = bus.SubscribeTopic(names[t], "tick", countingHandler(&c))
	}
	e := benchEvent("tick")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.PublishToTopic(names[i%topics], e)
	}
}

func BenchmarkConcurrentPublishers(b *testing.B) {
	bus := New()
	var c int64
	for i := 0; i < 16; i++ {
		_, _ = bus.Subscribe("tick", countingHandler(&c))
	}
	e := benchEvent("tick")
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bus.Publish(e)
		}
	})
}
