package webrtc

import (
	"log"
	"time"
)

// DefaultGatherTimeout bounds ICE candidate gathering before the offer is sent anyway.
const DefaultGatherTimeout = 3 * time.Second

// AwaitGathering waits until done is closed or timeout elapses. It reports whether
// gathering completed; a timeout is not an error, the offer goes out with whatever
// candidates were found.
func AwaitGathering(done <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultGatherTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Printf("[webrtc] ICE gathering complete")
		return true
	case <-timer.C:
		log.Printf("[webrtc] ICE gathering timed out after %s, using partial candidates", timeout)
		return false
	}
}
