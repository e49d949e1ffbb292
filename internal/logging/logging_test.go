package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", "json", &buf)
	require.NoError(t, err)

	l.WithField("studentNumber", "STU001").Debug("fetching student")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetching student", entry["msg"])
	assert.Equal(t, "STU001", entry["studentNumber"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "text", &buf)
	require.NoError(t, err)

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRaft_FollowsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "json", &buf)
	require.NoError(t, err)

	rl := Raft(l, "raft")
	assert.Equal(t, hclog.Warn, rl.GetLevel())

	rl.Info("heartbeat")
	assert.Zero(t, buf.Len())

	rl.Warn("election timeout")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "election timeout", entry["@message"])
	assert.Equal(t, "raft", entry["@module"])
}

func TestHclogLevel(t *testing.T) {
	assert.Equal(t, hclog.Trace, hclogLevel(logrus.TraceLevel))
	assert.Equal(t, hclog.Error, hclogLevel(logrus.PanicLevel))
}
