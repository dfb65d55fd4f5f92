package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllSubmittedJobs(t *testing.T) {
	p := New()
	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	p.Close()
	assert.EqualValues(t, n, atomic.LoadInt64(&count))
}

func TestPoolCompletesJobsReleasedTogether(t *testing.T) {
	p := New()
	start := make(chan struct{})
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		p.Submit(func() {
			<-start
			done <- struct{}{}
		})
	}
	close(start)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("jobs did not complete after being released")
		}
	}
	p.Close()
}
