// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package beacon

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one formatted beacon, identified for log correlation.
type Message struct {
	ID     uuid.UUID `json:"id"`
	Text   string    `json:"message"`
	SentAt time.Time `json:"sent_at"`
}

// Sink receives every beacon message. Deliver is called from the beacon
// goroutine, one message at a time.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}
