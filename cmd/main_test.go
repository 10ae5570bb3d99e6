package main

import (
	"bytes"
	"chat-relay/errors"
	"chat-relay/runtime/workers"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) Config {
	t.Helper()
	config, err := LoadConfig()
	require.NoError(t, err)
	return config
}

func TestParseArgs_Modes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		mode Mode
	}{
		{name: "server flag", args: []string{"-server"}, mode: ServerMode},
		{name: "client flag", args: []string{"-client"}, mode: ClientMode},
		{name: "positional server", args: []string{"s"}, mode: ServerMode},
		{name: "positional client", args: []string{"c"}, mode: ClientMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultConfig(t)
			mode, err := parseArgs(tt.args, &config, &bytes.Buffer{})
			require.NoError(t, err)
			require.Equal(t, tt.mode, mode)
		})
	}
}

func TestParseArgs_Invalid_Mode(t *testing.T) {
	for _, args := range [][]string{nil, {"-server", "-client"}, {"s", "c"}, {"x"}} {
		config := defaultConfig(t)
		out := &bytes.Buffer{}

		_, err := parseArgs(args, &config, out)

		// Then the usage is printed and the error tells the mode is wrong
		require.ErrorIs(t, err, errors.ErrInvalidMode, "args=%v", args)
		require.Contains(t, out.String(), "-server|-client")
	}
}

func TestParseArgs_Help(t *testing.T) {
	config := defaultConfig(t)
	out := &bytes.Buffer{}

	_, err := parseArgs([]string{"-help"}, &config, out)

	require.ErrorIs(t, err, flag.ErrHelp)
	require.Contains(t, out.String(), "RELAY_PORT")
}

func TestRun_Help_With_Malformed_Environment(t *testing.T) {
	req := require.New(t)

	// Given an environment that cannot be parsed
	t.Setenv("RELAY_PORT", "abc")
	out := &bytes.Buffer{}

	// When only the usage is asked for
	code, err := run([]string{"-help"}, out)

	// Then the usage is printed and the exit is clean
	req.NoError(err)
	req.Equal(exitOK, code)
	req.Contains(out.String(), "RELAY_PORT")

	// And any other invocation still reports the environment error
	code, err = run([]string{"-server"}, &bytes.Buffer{})
	req.Error(err)
	req.Equal(exitError, code)
}

func TestParseArgs_Address_Overrides(t *testing.T) {
	req := require.New(t)

	// Given -addr in server mode, the bind host changes
	config := defaultConfig(t)
	_, err := parseArgs([]string{"-server", "-addr", "0.0.0.0", "-port", "6000"}, &config, &bytes.Buffer{})
	req.NoError(err)
	req.Equal("0.0.0.0", config.ServerHost)
	req.Equal("0.0.0.0:6000", config.RelayConfig().Address())

	// Given -addr in client mode, the dialed host changes
	config = defaultConfig(t)
	_, err = parseArgs([]string{"-addr", "10.1.2.3", "c"}, &config, &bytes.Buffer{})
	req.NoError(err)
	req.Equal("10.1.2.3:5858", config.ClientAddress())
	req.Equal("::", config.ServerHost)
}

func TestLoadConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("RELAY_PORT", "7000")
	t.Setenv("OVERFLOW_POLICY", "drop-newest")
	t.Setenv("IDLE_TIMEOUT", "5m")
	t.Setenv("CHARACTER_REPLACEMENT", "#")

	config, err := LoadConfig()
	req.NoError(err)
	req.NoError(config.Validate())

	relay := config.RelayConfig()
	req.Equal(7000, relay.Port)
	req.Equal(workers.DropNewest, relay.OverflowPolicy)
	req.Equal(5*time.Minute, relay.IdleTimeout)
	req.Equal('#', relay.CharReplacement)
	req.Equal(1024, relay.BufferSize)
	req.Equal(10*time.Second, relay.WriteTimeout)
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)

	config := defaultConfig(t)
	req.NoError(config.Validate())

	config.OverflowPolicy = "drop-oldest"
	req.Error(config.Validate())

	config = defaultConfig(t)
	config.CharReplacement = "**"
	req.Error(config.Validate())

	config = defaultConfig(t)
	config.Port = 0
	req.Error(config.Validate())
}

func TestEnvironmentRows(t *testing.T) {
	rows := environmentRows()

	require.Contains(t, rows, []string{"RELAY_PORT", "5858"})
	require.Contains(t, rows, []string{"OVERFLOW_POLICY", "block"})
	require.Contains(t, rows, []string{"MODERATION_DIR", "-"})
}
