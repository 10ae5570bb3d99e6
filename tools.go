//go:build tools
// +build tools

// Package tools pins the mockgen version used by go generate in contract/.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
