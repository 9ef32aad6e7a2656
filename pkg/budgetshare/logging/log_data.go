package logging

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const contextKeyLogData = "log_data"

// LogData collects fields and timings for a single request and emits them
// as one structured log line when the request completes.
type LogData struct {
	mu        sync.Mutex
	timeItems map[string]int64
	dataItems map[string]interface{}
	logger    *logrus.Logger
}

func NewLogData(logger *logrus.Logger) *LogData {
	return &LogData{
		timeItems: make(map[string]int64),
		dataItems: make(map[string]interface{}),
		logger:    logger,
	}
}

// AddTiming starts a timer; calling the returned func records the elapsed
// milliseconds under entryName.
func (l *LogData) AddTiming(entryName string) func() {
	startTime := time.Now()

	return func() {
		timeSince := time.Since(startTime).Milliseconds()
		l.mu.Lock()
		defer l.mu.Unlock()
		l.timeItems[entryName] = timeSince
	}
}

func (l *LogData) AddData(key string, value interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dataItems[key] = value
}

func (l *LogData) Log() *logrus.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := logrus.NewEntry(l.logger)
	for key, value := range l.dataItems {
		entry = entry.WithField(key, value)
	}
	for key, value := range l.timeItems {
		entry = entry.WithField(key, value)
	}
	return entry
}

// RequestLogger replaces gin's default logger with one logrus line per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logData := NewLogData(logger)
		c.Set(contextKeyLogData, logData)

		endTimer := logData.AddTiming("duration_ms")
		c.Next()
		endTimer()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logData.AddData("method", c.Request.Method)
		logData.AddData("route", route)
		logData.AddData("status", c.Writer.Status())
		logData.AddData("client_ip", c.ClientIP())
		if userID, ok := c.Get("user_id"); ok {
			logData.AddData("user_id", userID)
		}

		entry := logData.Log()
		switch {
		case len(c.Errors) > 0:
			entry.WithError(c.Errors.Last()).Error("Request.Error")
		case c.Writer.Status() >= 500:
			entry.Error("Request.Complete")
		default:
			entry.Info("Request.Complete")
		}
	}
}

// FromContext returns the request's LogData, or a detached one when the
// middleware is not installed.
func FromContext(c *gin.Context) *LogData {
	if v, ok := c.Get(contextKeyLogData); ok {
		if ld, ok := v.(*LogData); ok {
			return ld
		}
	}
	return NewLogData(logrus.StandardLogger())
}
