package main

import (
	"chat-relay/client"
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the relay binary.
const (
	exitOK    = 0
	exitError = 1
)

type Mode int

const (
	ServerMode Mode = iota + 1
	ClientMode
)

func main() {
	code, err := run(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run loads the configuration, applies the command line and starts the selected mode.
// Defers in the relay and client run before main exits.
// -help is honoured even when the environment cannot be parsed.
func run(args []string, usage io.Writer) (int, error) {
	config, configErr := LoadConfig()

	mode, err := parseArgs(args, &config, usage)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK, nil
	}
	if configErr != nil {
		return exitError, configErr
	}
	if err != nil {
		return exitError, err
	}
	if err := config.Validate(); err != nil {
		return exitError, err
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case ClientMode:
		c := client.New(log, client.Config{
			ServerAddress: config.ClientAddress(),
			Colours:       config.Colours,
		}, os.Stdin, os.Stdout)
		return c.Run(ctx)
	default:
		log.Info("Starting server...", "address", config.RelayConfig().Address())
		relay := runtime.NewRelay(log, config.RelayConfig())
		if err := relay.Start(ctx); err != nil {
			return exitError, fmt.Errorf("server error: %w", err)
		}
		log.Info("Program stopped cleanly")
		return exitOK, nil
	}
}

// parseArgs applies command line flags on top of config and returns the selected mode.
// The mode is chosen with -server / -client or the positional "s" / "c".
func parseArgs(args []string, config *Config, out io.Writer) (Mode, error) {
	fs := flag.NewFlagSet(BinaryName, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { printUsage(out, fs) }

	server := fs.Bool("server", false, "Start the relay server")
	clientMode := fs.Bool("client", false, "Start the interactive client")
	addr := fs.String("addr", "", "Address to bind (server) or to dial (client)")
	port := fs.Int("port", 0, "Port to bind (server) or to dial (client)")

	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	for _, arg := range fs.Args() {
		switch arg {
		case "s":
			*server = true
		case "c":
			*clientMode = true
		default:
			fs.Usage()
			return 0, fmt.Errorf("%w: unexpected argument %q", errors.ErrInvalidMode, arg)
		}
	}

	if *server == *clientMode {
		fs.Usage()
		return 0, errors.ErrInvalidMode
	}

	mode := ServerMode
	if *clientMode {
		mode = ClientMode
	}
	if *addr != "" {
		if mode == ServerMode {
			config.ServerHost = *addr
		} else {
			config.ClientHost = *addr
		}
	}
	if *port != 0 {
		config.Port = *port
	}
	return mode, nil
}
