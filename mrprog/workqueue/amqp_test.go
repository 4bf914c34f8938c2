package workqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Command handlers read the session while the consumer goroutine replaces
// it after a connection loss. Run with -race.
func TestSessionSwapIsSafeUnderConcurrentReads(t *testing.T) {
	a := NewAMQP(Config{Host: "localhost"})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				a.session()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		a.setSession(nil, nil)
	}
	close(stop)
	wg.Wait()

	conn, ch := a.session()
	assert.Nil(t, conn)
	assert.Nil(t, ch)
}
