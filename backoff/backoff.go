// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backoff implements the retry policy shared by pipeline stage
// execution and callback delivery.
package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/docuverse/core"
)

// ErrInvalidMaxAttempts is returned when a policy has MaxAttempts <= 0.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// Policy describes bounded exponential backoff: the delay before attempt
// n+1 is BaseDelay * Multiplier^(n-1), up to MaxAttempts attempts total.
type Policy struct {
	BaseDelay   time.Duration
	Multiplier  int
	MaxAttempts int
}

// DefaultPolicy returns the policy used when none is configured:
// 3 attempts starting at one second, doubling.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxAttempts: 3,
	}
}

// Do retries an operation according to the policy.
// Errors marked with core.Permanent are returned immediately without
// further attempts. Returns the error from the last attempt if all
// attempts fail, or the context error if the context ends first.
func (p Policy) Do(ctx context.Context, operation func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	multiplier := p.Multiplier
	if multiplier < 2 {
		multiplier = 2
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if core.IsPermanent(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= time.Duration(multiplier)
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
