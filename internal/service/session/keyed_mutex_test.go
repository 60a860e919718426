package session

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := keyedMutex{locks: make(map[string]*refLock)}

	unlock := k.lock("s-1")
	acquired := make(chan struct{})
	go func() {
		release := k.lock("s-1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the key")
	}
}

func TestKeyedMutexDifferentKeysIndependent(t *testing.T) {
	k := keyedMutex{locks: make(map[string]*refLock)}

	unlockA := k.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutexForgetsReleasedKeys(t *testing.T) {
	k := keyedMutex{locks: make(map[string]*refLock)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("s-1")
			unlock()
			unlock()
		}()
	}
	wg.Wait()

	if n := k.size(); n != 0 {
		t.Fatalf("expected no retained keys, got %d", n)
	}
}
