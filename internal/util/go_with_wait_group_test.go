package util_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexodus-io/hbprobe/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestGoWithWaitGroup(t *testing.T) {

	// a nil WaitGroup still runs the function
	done := make(chan struct{})
	util.GoWithWaitGroup(nil, func() {
		close(done)
	})
	<-done

	// Wait returns only after every goroutine finished.
	counter := atomic.Int32{}
	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		util.GoWithWaitGroup(wg, func() {
			time.Sleep(50 * time.Millisecond)
			counter.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(10), counter.Load())

}
