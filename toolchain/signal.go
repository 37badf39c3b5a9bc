package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Interruptible returns a context that is cancelled by the first SIGINT so
// that the running tool is killed and the caller can restore its state. A
// second Ctrl-C within one second kills the process groups of all running
// tools, then this process and its own process group.
// The returned function releases the signal handler.
func Interruptible(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGINT)
	done := make(chan struct{})

	go func() {
		var lastSignalTime *time.Time
		for {
			select {
			case <-done:
				return
			case <-signals:
			}

			currentTime := time.Now()
			switch {
			case lastSignalTime == nil:
				fmt.Println("SIGINT: Stopping the sweep and restoring the default parameters...")
				cancel()
			case currentTime.Sub(*lastSignalTime) > 1*time.Second:
				fmt.Println("SIGINT: Press Ctrl-C again within 1 sec to force-kill hlsweep and its tools...")
			default:
				fmt.Println("SIGINT: Killing hlsweep and its subprocesses...")
				groups.kill()
				if err := syscall.Kill(-syscall.Getpid(), syscall.SIGKILL); err != nil {
					fmt.Printf("Failed to kill hlsweep: %s\n", err)
				}
			}
			lastSignalTime = &currentTime
		}
	}()

	return ctx, func() {
		signal.Stop(signals)
		close(done)
		cancel()
	}
}
