package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "prod", "debug")

	log.WithFields(logrus.Fields{"booking_id": "MB1"}).Info("created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "MB1", line["booking_id"])
	assert.Equal(t, "created", line["msg"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := newWithOutput(&bytes.Buffer{}, "dev", "loud")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
