package notify

import (
	"FrappeBot/internal/lib/sl"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Notifier pushes one event to the workflow system.
type Notifier interface {
	Notify(ctx context.Context, payload interface{}) error
}

// Dispatcher runs notifications in the background so callers never wait
// for the workflow system. Failures go to the error handler.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	onError  func(payload interface{}, err error)
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewDispatcher(notifier Notifier, timeout time.Duration, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		log:      log.With(sl.Module("notify.dispatcher")),
	}
	d.onError = func(payload interface{}, err error) {
		d.log.With(
			slog.String("event", eventType(payload)),
			sl.Err(err),
		).Warn("workflow notification failed")
	}
	return d
}

// OnError replaces the default logging handler.
func (d *Dispatcher) OnError(fn func(payload interface{}, err error)) {
	d.onError = fn
}

// Go sends payload on its own goroutine.
func (d *Dispatcher) Go(payload interface{}) {
	if d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.With(slog.Any("panic", r)).Error("workflow notification panic")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, payload); err != nil {
			d.onError(payload, err)
		}
	}()
}

// Notify sends synchronously, bounded by the dispatcher timeout.
func (d *Dispatcher) Notify(ctx context.Context, payload interface{}) error {
	if d.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifier.Notify(ctx, payload)
}

// Wait blocks until every background notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// eventType reads the "type" field every workflow event carries.
func eventType(payload interface{}) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	var typed struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &typed)
	return typed.Type
}
