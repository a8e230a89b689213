package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsOnRunGoroutine(t *testing.T) {
	s, err := New("pool-a", 4)
	require.NoError(t, err)
	defer s.Close()

	runGoroutineStarted := make(chan struct{})
	go func() {
		close(runGoroutineStarted)
		s.Run()
	}()
	<-runGoroutineStarted

	var got int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Submit(func() { got += i })
		}()
	}
	wg.Wait()

	assert.Equal(t, 0+1+2+3+4, got)
	s.StopLoop()
}

func TestGoRunsConcurrently(t *testing.T) {
	s, err := New("pool-a", 8)
	require.NoError(t, err)
	defer s.Close()

	var counter atomic.Int32
	for i := 0; i < 20; i++ {
		s.Go(func() { counter.Add(1) })
	}
	s.Wait()

	assert.Equal(t, int32(20), counter.Load())
}

func TestStopLoopUnblocksRun(t *testing.T) {
	s, err := New("pool-a", 2)
	require.NoError(t, err)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	s.StopLoop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after StopLoop")
	}
}

func TestSubmitAfterStopDoesNotBlockForever(t *testing.T) {
	s, err := New("pool-a", 2)
	require.NoError(t, err)
	defer s.Close()

	go s.Run()
	s.StopLoop()

	done := make(chan struct{})
	go func() {
		s.Submit(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked forever after scheduler stopped")
	}
}
