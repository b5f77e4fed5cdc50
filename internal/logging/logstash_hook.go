package logging

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var errRetryCooldown = errors.New("logstash: retry cooldown in effect")

// LogstashHook ships every entry as a JSON line to a Logstash TCP input. It
// keeps one connection open and drops entries while Logstash is unreachable,
// so logging never blocks a request on the network.
type LogstashHook struct {
	addr          string
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	retryInterval time.Duration
	formatter     logrus.Formatter
	dial          func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu        sync.Mutex
	conn      net.Conn
	nextRetry time.Time
	closed    bool
}

// HookOption configures a LogstashHook.
type HookOption func(*LogstashHook)

// WithDialTimeout overrides the TCP dial timeout. Defaults to 2 seconds.
func WithDialTimeout(d time.Duration) HookOption {
	return func(h *LogstashHook) { h.dialTimeout = d }
}

// WithWriteTimeout overrides the TCP write timeout. Defaults to 1 second.
func WithWriteTimeout(d time.Duration) HookOption {
	return func(h *LogstashHook) { h.writeTimeout = d }
}

// WithRetryInterval overrides the cool-down after a failed connect or write.
// Defaults to 5 seconds.
func WithRetryInterval(d time.Duration) HookOption {
	return func(h *LogstashHook) { h.retryInterval = d }
}

func NewLogstashHook(addr string, opts ...HookOption) (*LogstashHook, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("logstash: empty address")
	}
	h := &LogstashHook{
		addr:          addr,
		dialTimeout:   2 * time.Second,
		writeTimeout:  time.Second,
		retryInterval: 5 * time.Second,
		formatter:     &logrus.JSONFormatter{},
		dial:          net.DialTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *LogstashHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire never returns network errors; a lost log line is preferable to a
// failed request.
func (h *LogstashHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	if err := h.ensureConnLocked(); err != nil {
		return nil
	}
	if h.writeTimeout > 0 {
		_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	}
	if _, err := h.conn.Write(line); err != nil {
		h.closeConnLocked()
		h.scheduleRetryLocked()
	}
	return nil
}

func (h *LogstashHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.closeConnLocked()
}

func (h *LogstashHook) ensureConnLocked() error {
	if h.conn != nil {
		return nil
	}
	if !h.nextRetry.IsZero() && time.Now().Before(h.nextRetry) {
		return errRetryCooldown
	}
	conn, err := h.dial("tcp", h.addr, h.dialTimeout)
	if err != nil {
		h.scheduleRetryLocked()
		return err
	}
	h.conn = conn
	h.nextRetry = time.Time{}
	return nil
}

func (h *LogstashHook) closeConnLocked() error {
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

func (h *LogstashHook) scheduleRetryLocked() {
	if h.retryInterval <= 0 {
		h.nextRetry = time.Time{}
		return
	}
	h.nextRetry = time.Now().Add(h.retryInterval)
}
