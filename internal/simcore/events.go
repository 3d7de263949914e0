package simcore

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EventType tags one match event for the log.
type EventType string

const (
	EventPlayerJoin  EventType = "player_join"
	EventPlayerLeave EventType = "player_leave"
	EventDamage      EventType = "damage"
	EventKill        EventType = "kill"
	EventGroupState  EventType = "group_state"
	EventPoolWarning EventType = "pool_warning"
)

// Event is one entry in the match event log.
type Event struct {
	Type     EventType `json:"type"`
	Tick     uint64    `json:"tick"`
	PlayerID string    `json:"player_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Amount   int       `json:"amount,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

const (
	eventBufferSize    = 1024 // circular buffer size; must be a power of two
	maxEventsPerSec    = 10000
	batchFlushInterval = 100 * time.Millisecond
)

// EventLog provides bounded, rate-limited match event logging: producers
// (the simulation tick) write into a circular buffer, an async writer
// drains it to disk in batches. Under a flood the log drops events and
// counts them rather than stalling a tick.
type EventLog struct {
	buffer    [eventBufferSize]Event
	writeHead uint64 // atomic, producer position
	readHead  uint64 // consumer position, writer goroutine only

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// NewEventLog creates an event log; call Start to begin draining it.
func NewEventLog() *EventLog {
	return &EventLog{
		limiter:  rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// Start opens the output file (empty path logs to process stderr via log)
// and launches the async writer.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}
	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes outstanding events and shuts the writer down.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit records an event. Returns false if the log is stopped, rate-limited,
// or the buffer is full — the event is dropped and counted, never blocked
// on.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	head := atomic.LoadUint64(&el.writeHead)
	read := atomic.LoadUint64(&el.readHead)
	if head-read >= eventBufferSize {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	el.buffer[head%eventBufferSize] = event
	atomic.AddUint64(&el.writeHead, 1)
	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// Stats returns (total emitted, dropped) counts.
func (el *EventLog) Stats() (total, dropped uint64) {
	return atomic.LoadUint64(&el.totalCount), atomic.LoadUint64(&el.droppedCount)
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			el.flush()
			return
		case <-ticker.C:
			el.flush()
		}
	}
}

func (el *EventLog) flush() {
	head := atomic.LoadUint64(&el.writeHead)
	for el.readHead < head {
		ev := el.buffer[el.readHead%eventBufferSize]
		atomic.AddUint64(&el.readHead, 1)

		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		el.fileMu.Lock()
		if el.file != nil {
			el.file.Write(append(data, '\n'))
		} else {
			log.Printf("event: %s", data)
		}
		el.fileMu.Unlock()
	}
}
