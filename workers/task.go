package workers

import (
	"time"

	"github.com/nsqio/go-nsq"
)

// Task encapsulates everything that a worker will need to
// pass from one channel to the next during procesing.
type Task struct {

	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	// RecordID is the id of the evidence record this task
	// is working on. It comes from the NSQ message body.
	RecordID string

	// PendingAnchors is the number of anchors still awaiting
	// finality after the most recent polling pass.
	PendingAnchors int

	// Error is the error, if any, from the most recent
	// polling pass.
	Error error

	nsqStopChannel chan bool

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
}

// NSQStart creates a timer that touches the NSQ message
// every two minutes while the task is in process, so a slow
// gateway cannot cause NSQ to time the message out and hand
// it to a second worker mid-poll.
func (task *Task) NSQStart() {
	task.NSQMessage.DisableAutoResponse()
	interval := time.Duration(2) * time.Minute
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				task.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				task.tickerStopped = true
				return
			}
		}
	}()
	task.nsqStartCalled = true
	task.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (task *Task) NSQRequeue(delay time.Duration) {
	task.nsqStopChannel <- true
	task.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (task *Task) NSQFinish() {
	task.nsqStopChannel <- true
	task.NSQMessage.Finish()
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exist for testing purposes.
func (task *Task) StartCalled() bool {
	return task.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exist for testing purposes.
func (task *Task) TickerStopped() bool {
	return task.tickerStopped
}
