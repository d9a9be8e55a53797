package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/schedule"
	"github.com/vitalsync/vitalsync/internal/syncmsg"
	"github.com/vitalsync/vitalsync/internal/version"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	cmd := &cobra.Command{Use: "vitalsync"}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, version.Detailed(), strings.TrimSpace(out.String()))
}

func TestParseDay(t *testing.T) {
	fallback := time.Date(2025, 6, 14, 0, 0, 0, 0, time.Local)

	got, err := parseDay("", fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	got, err = parseDay("2025-06-01", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local), got)

	_, err = parseDay("June 1st", fallback)
	assert.Error(t, err)
}

func TestWireEncoding_FollowsConfig(t *testing.T) {
	t.Cleanup(func() { viper.Set("encoding", "") })

	viper.Set("encoding", "json")
	assert.Equal(t, syncmsg.EncodingJSON, wireEncoding())

	viper.Set("encoding", "msgpack")
	assert.Equal(t, syncmsg.EncodingMsgPack, wireEncoding())

	// Unset or unknown preferences fall back to msgpack.
	viper.Set("encoding", "")
	assert.Equal(t, syncmsg.EncodingMsgPack, wireEncoding())
}

func TestUpdateSchedule_ValidatesAndPersists(t *testing.T) {
	viper.Set("app_dir", t.TempDir())
	t.Cleanup(func() { viper.Set("app_dir", "") })

	require.NoError(t, updateSchedule(func(s *schedule.Schedule) {
		s.IsEnabled = true
		s.Frequency = schedule.FrequencyWeekly
		s.PreferredHour = 7
	}))

	sched, err := schedule.NewStore(schedulePath()).Load()
	require.NoError(t, err)
	assert.True(t, sched.IsEnabled)
	assert.Equal(t, schedule.FrequencyWeekly, sched.Frequency)
	assert.Equal(t, 7, sched.PreferredHour)

	err = updateSchedule(func(s *schedule.Schedule) { s.PreferredHour = 99 })
	assert.Error(t, err)

	err = updateSchedule(func(s *schedule.Schedule) { s.Frequency = "hourly" })
	assert.Error(t, err)
}
