// Package notify sends user-facing notifications (registration, invitation
// decisions) without blocking the request that triggered them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers one message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("Notify.Send")
	return nil
}

// Dispatcher runs sends on background goroutines. A nil *Dispatcher drops
// every notification.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *logrus.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{notifier: n, timeout: timeout, logger: logger}
}

// Dispatch sends in the background. Failures are logged and never reach
// the caller.
func (d *Dispatcher) Dispatch(to, subject, body string) {
	if d == nil || d.notifier == nil || to == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Send(ctx, to, subject, body); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"to":      to,
				"subject": subject,
			}).Warn("Notify.Failed")
		}
	}()
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
