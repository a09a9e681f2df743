package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSerializes(t *testing.T) {
	r := NewRegistry()
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With("some/file.json", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestEquivalentPathsShareALock(t *testing.T) {
	r := NewRegistry()
	release := r.Acquire("./a/b.json")

	acquired := make(chan struct{})
	go func() {
		inner := r.Acquire("a/b.json")
		inner()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the first holds the lock")
	default:
	}
	release()
	<-acquired
}

func TestDistinctPathsDoNotBlock(t *testing.T) {
	r := NewRegistry()
	releaseA := r.Acquire("a.json")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := r.Acquire("b.json")
		releaseB()
		close(done)
	}()
	<-done
}

func TestPackageLevelHelpers(t *testing.T) {
	err := With("shared.json", func() error { return nil })
	require.NoError(t, err)

	release := Acquire("shared.json")
	release()
}
