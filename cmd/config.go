package main

import (
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	ServerHost           string        `env:"RELAY_HOST,default=::" validate:"required"`
	ClientHost           string        `env:"RELAY_CLIENT_HOST,default=127.0.0.1" validate:"required"`
	Port                 int           `env:"RELAY_PORT,default=5858" validate:"min=1,max=65535"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024" validate:"min=1"`
	OverflowPolicy       string        `env:"OVERFLOW_POLICY,default=block" validate:"required"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT,default=0s" validate:"min=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"min=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"min=0"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=80" validate:"min=1,max=100"`
	ModerationDir        string        `env:"MODERATION_DIR" validate:"omitempty,dir"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AdminPort            int           `env:"ADMIN_PORT,default=0" validate:"min=0,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	Colours              bool          `env:"COLOURS,default=true"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

// Validate checks field ranges, the overflow policy and the replacement character.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := workers.ParseOverflowPolicy(c.OverflowPolicy); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func (c Config) RelayConfig() runtime.RelayConfig {
	replacement, _ := CharacterRune(c.CharReplacement)
	return runtime.RelayConfig{
		Host:            c.ServerHost,
		Port:            c.Port,
		BufferSize:      c.BufferSize,
		OverflowPolicy:  workers.OverflowPolicy(c.OverflowPolicy),
		IdleTimeout:     c.IdleTimeout,
		WriteTimeout:    c.WriteTimeout,
		RestartInterval: c.RestartInterval,
		MetricInterval:  c.MetricInterval,
		WarnPercent:     c.LowCapacityThreshold,
		ModerationDir:   c.ModerationDir,
		CharReplacement: replacement,
		AdminPort:       c.AdminPort,
	}
}

// ClientAddress is the relay the client dials.
func (c Config) ClientAddress() string {
	return net.JoinHostPort(c.ClientHost, strconv.Itoa(c.Port))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
