package keyedmutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := New()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock := km.Lock("tx_1")
			defer unlock()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 10)
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := New()

	unlockA := km.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		defer unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutex_EntriesAreReclaimed(t *testing.T) {
	km := New()

	unlock := km.Lock("tx_1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}

func TestKeyedMutex_CountersUnderContention(t *testing.T) {
	km := New()

	keys := []string{"a", "b", "c"}
	counters := make([]int, len(keys))
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		for j, key := range keys {
			wg.Add(1)
			go func(j int, key string) {
				defer wg.Done()
				unlock := km.Lock(key)
				defer unlock()
				counters[j]++
			}(j, key)
		}
	}
	wg.Wait()

	for j := range keys {
		assert.Equal(t, 100, counters[j])
	}
}
