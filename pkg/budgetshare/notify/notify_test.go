package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (r *recordingNotifier) Send(ctx context.Context, to, subject, body string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to+"|"+subject)
	return r.err
}

func TestDispatchDoesNotBlock(t *testing.T) {
	rec := &recordingNotifier{delay: 50 * time.Millisecond}
	d := NewDispatcher(rec, time.Second, nil)

	start := time.Now()
	d.Dispatch("b@example.com", "Request accepted", "welcome")
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	d.Wait()
	assert.Equal(t, []string{"b@example.com|Request accepted"}, rec.sent)
}

func TestDispatchFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Formatter = &logrus.JSONFormatter{}

	d := NewDispatcher(&recordingNotifier{err: errors.New("smtp down")}, time.Second, logger)
	d.Dispatch("a@example.com", "hi", "body")
	d.Wait()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Notify.Failed", line["msg"])
	assert.Equal(t, "smtp down", line["error"])
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Dispatch("a@example.com", "hi", "body")
	d.Wait()
}

func TestEmptyRecipientSkipped(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, time.Second, nil)
	d.Dispatch("", "hi", "body")
	d.Wait()
	assert.Empty(t, rec.sent)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Formatter = &logrus.JSONFormatter{}

	require.NoError(t, LogNotifier{Logger: logger}.Send(context.Background(), "a@example.com", "Welcome", "hello"))
	assert.Contains(t, buf.String(), `"to":"a@example.com"`)
}

func TestEncodeMessage(t *testing.T) {
	b, err := encodeMessage(Message{From: "no-reply@x", To: "a@x", Subject: "s", Body: "b"})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "a@x", m["to"])
	assert.Contains(t, m, "sent_at")
}
