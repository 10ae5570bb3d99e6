// Package domain contains core concepts of the relay.
// This file defines the wire format of a relayed message.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout renders the local clock as HH:MM:SS.
const TimeLayout = "15:04:05"

// FormatLine builds the line written to every recipient: "[HH:MM:SS] name > text\n".
func FormatLine(at time.Time, name, text string) string {
	return fmt.Sprintf("[%s] %s > %s\n", at.Format(TimeLayout), name, text)
}

// TrimLine removes the line terminator and surrounding whitespace from a received line.
func TrimLine(line string) string {
	return strings.TrimSpace(line)
}
