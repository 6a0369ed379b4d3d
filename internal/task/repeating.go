package task

import (
	"sync"
	"time"
)

// RepeatingTask executes a task in a specific interval asynchronously.
// The task value itself acts as the handle of the background activity: whoever starts it owns it and has to call
// Stop on teardown to not leak the repeated invocations.
type RepeatingTask struct {
	task     func()
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewRepeating creates a new repeating asynchronous task
func NewRepeating(task func(), interval time.Duration) *RepeatingTask {
	return &RepeatingTask{
		task:     task,
		interval: interval,
	}
}

// Start starts the repeating task.
// If the task is already running, this is a no-op.
func (task *RepeatingTask) Start() {
	task.mu.Lock()
	defer task.mu.Unlock()

	if task.running {
		return
	}
	task.running = true
	task.stop = make(chan struct{})

	stop := task.stop
	go func() {
		ticker := time.NewTicker(task.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task.task()
			case <-stop:
				return
			}
		}
	}()
}

// Stop stops the repeating task.
// If the task is not running, this is a no-op.
// forceExec defines whether to execute the task one last time just before the task shuts down.
func (task *RepeatingTask) Stop(forceExec bool) {
	task.mu.Lock()
	if !task.running {
		task.mu.Unlock()
		return
	}
	close(task.stop)
	task.running = false
	task.mu.Unlock()

	if forceExec {
		task.task()
	}
}
