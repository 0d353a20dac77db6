package dsync

import (
	"context"
	"time"
)

// Now is the clock used for deadline accounting; tests may replace it.
var Now = time.Now

// Since returns the wall-clock time elapsed since start according to Now.
func Since(start time.Time) time.Duration {
	return Now().Sub(start)
}

// Sleep blocks for the specified duration or until the context is done, whichever happens first.
func Sleep(ctx context.Context, sleepTime time.Duration) {
	if sleepTime <= 0 {
		return
	}
	sleep, cancel := context.WithTimeout(ctx, sleepTime)
	defer cancel()
	<-sleep.Done()
}
