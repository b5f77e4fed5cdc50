package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLogstashHookShipsJSONLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan map[string]any, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		var payload map[string]any
		if json.Unmarshal(line, &payload) == nil {
			received <- payload
		}
	}()

	hook, err := NewLogstashHook(ln.Addr().String())
	require.NoError(t, err)
	defer hook.Close()

	logger := Discard()
	logger.AddHook(hook)
	logger.WithField("component", "password_reset").Info("challenge issued")

	select {
	case payload := <-received:
		require.Equal(t, "challenge issued", payload["msg"])
		require.Equal(t, "password_reset", payload["component"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for log line")
	}
}

func TestLogstashHookDropsWhileUnreachable(t *testing.T) {
	dials := 0
	hook, err := NewLogstashHook("logstash:5000", WithRetryInterval(time.Hour))
	require.NoError(t, err)
	hook.dial = func(string, string, time.Duration) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	entry := logrus.NewEntry(Discard())
	require.NoError(t, hook.Fire(entry))
	require.NoError(t, hook.Fire(entry))
	require.Equal(t, 1, dials, "second write must respect the retry cooldown")
}

func TestNewLogstashHookRejectsEmptyAddress(t *testing.T) {
	_, err := NewLogstashHook("  ")
	require.Error(t, err)
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("verbose", "text", nil)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	require.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
