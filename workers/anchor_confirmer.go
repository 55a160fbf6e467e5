package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/custody"
	"github.com/verity-secure/evidence-services/models/common"
)

// AnchorConfirmer is a worker that polls ledger gateways until each
// of a record's Pending anchors reaches Confirmed or Failed. The
// evidence server enqueues a record id on the confirm topic whenever
// a submission completes with anchors still awaiting finality; this
// worker requeues the message until finality is observed or the
// polling window runs out.
type AnchorConfirmer struct {
	// Context contains connections to NSQ, Redis, and the
	// ledger gateways.
	Context *common.Context

	// Settings contains the worker's channel, attempt, and
	// requeue settings.
	Settings *Settings

	// Confirmer does the actual status polling and record updates.
	Confirmer *custody.Confirmer

	// ProcessChannel is where the polling happens.
	ProcessChannel chan *Task

	// SuccessChannel processes records whose anchors have all
	// reached a terminal status.
	SuccessChannel chan *Task

	// ErrorChannel processes records that still have Pending
	// anchors, or that hit a transient error while polling.
	// These are requeued.
	ErrorChannel chan *Task

	// FatalErrorChannel processes records that have exhausted
	// the polling window. Their remaining Pending anchors are
	// marked Failed.
	FatalErrorChannel chan *Task

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer
}

// NewAnchorConfirmer creates a new AnchorConfirmer worker and
// registers it as an NSQ consumer. As soon as this returns, the
// worker starts handling messages if any are available.
func NewAnchorConfirmer(bufSize, numWorkers, maxAttempts int, requeueTimeout time.Duration) *AnchorConfirmer {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.TopicAnchorConfirm + "_worker_chan",
		NSQTopic:          constants.TopicAnchorConfirm,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    requeueTimeout,
	}
	_context := common.NewContext()
	ledgers := make(map[string]custody.StatusClient, len(_context.LedgerClients))
	for chain, client := range _context.LedgerClients {
		ledgers[chain] = client
	}
	confirmer := &AnchorConfirmer{
		Context:           _context,
		Settings:          settings,
		Confirmer:         custody.NewConfirmer(_context.Logger, _context.RedisClient, ledgers),
		ProcessChannel:    make(chan *Task, settings.ChannelBufferSize),
		SuccessChannel:    make(chan *Task, settings.ChannelBufferSize),
		ErrorChannel:      make(chan *Task, settings.ChannelBufferSize),
		FatalErrorChannel: make(chan *Task, settings.ChannelBufferSize),
	}

	confirmer.Context.Logger.Info("AnchorConfirmer worker started with the following settings:")
	confirmer.Context.Logger.Info(settings.ToJSON())
	confirmer.Context.Logger.Info("Config settings (omitting sensitive credentials):")
	confirmer.Context.Logger.Info(confirmer.Context.Config.ToJSON())

	// Spin up the go routines that will act as workers
	for i := 0; i < settings.NumberOfWorkers; i++ {
		confirmer.Context.Logger.Infof("Starting worker #%d", i+1)
		go confirmer.ProcessItem()
	}
	go confirmer.ProcessErrorChannel()
	go confirmer.ProcessFatalErrorChannel()
	go confirmer.ProcessSuccessChannel()

	err := confirmer.RegisterAsNsqConsumer()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}

	return confirmer
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel.
func (c *AnchorConfirmer) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", c.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(c.Settings.NSQTopic, c.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	c.NSQConsumer = consumer
	c.NSQConsumer.AddHandler(c)
	c.NSQConsumer.ConnectToNSQLookupd(c.Context.Config.NsqLookupd)
	c.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage reads an evidence record id from the message body and
// pushes a task for it into the ProcessChannel. Unlike topics whose
// message body is a numeric work item id, the confirm topic carries
// the record's uuid as a plain string.
func (c *AnchorConfirmer) HandleMessage(message *nsq.Message) error {
	recordID := strings.TrimSpace(string(message.Body))
	if recordID == "" {
		c.Context.Logger.Error("Discarding NSQ message with empty body")
		return nil
	}
	task := &Task{
		NSQMessage: message,
		RecordID:   recordID,
	}
	task.NSQStart()
	c.Context.Logger.Infof("Checking anchors for record %s (attempt %d)",
		recordID, message.Attempts)
	c.ProcessChannel <- task
	return nil
}

// ProcessItem polls the record's Pending anchors once and then routes
// the task to the SuccessChannel, the ErrorChannel, or the
// FatalErrorChannel, depending on the outcome.
func (c *AnchorConfirmer) ProcessItem() {
	for task := range c.ProcessChannel {
		c.processItem(task)
	}
}

func (c *AnchorConfirmer) processItem(task *Task) {
	task.PendingAnchors, task.Error = c.Confirmer.Run(context.Background(), task.RecordID)
	if task.Error == nil && task.PendingAnchors == 0 {
		c.SuccessChannel <- task
		return
	}
	if c.attemptsExhausted(task) {
		c.FatalErrorChannel <- task
	} else {
		c.ErrorChannel <- task
	}
}

// attemptsExhausted returns true when NSQ has delivered this message
// as many times as the polling window allows.
func (c *AnchorConfirmer) attemptsExhausted(task *Task) bool {
	return int(task.NSQMessage.Attempts) >= c.Settings.MaxAttempts
}

func (c *AnchorConfirmer) ProcessSuccessChannel() {
	for task := range c.SuccessChannel {
		c.Context.Logger.Infof("All anchors for record %s are terminal", task.RecordID)
		task.NSQFinish()
	}
}

func (c *AnchorConfirmer) ProcessErrorChannel() {
	for task := range c.ErrorChannel {
		if task.Error != nil {
			c.Context.Logger.Warningf("Record %s: poll error: %v", task.RecordID, task.Error)
		} else {
			c.Context.Logger.Infof("Record %s still has %d pending anchor(s), requeueing",
				task.RecordID, task.PendingAnchors)
		}
		task.NSQRequeue(c.Settings.RequeueTimeout)
	}
}

func (c *AnchorConfirmer) ProcessFatalErrorChannel() {
	for task := range c.FatalErrorChannel {
		c.Context.Logger.Errorf("Record %s exhausted %d polling attempts, failing pending anchors",
			task.RecordID, c.Settings.MaxAttempts)
		err := c.Confirmer.MarkUnconfirmable(task.RecordID)
		if err != nil {
			c.Context.Logger.Errorf("Cannot fail pending anchors for record %s: %v",
				task.RecordID, err)
		}
		task.NSQFinish()
	}
}
