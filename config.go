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


package convoflow

import "time"

const (
	// DefaultSessionGap is the inactivity span that ends a conversation.
	DefaultSessionGap = 2 * time.Hour

	// DefaultLateGrace is how long out-of-order messages are still admitted
	// after the event-time frontier has passed them.
	DefaultLateGrace = 30 * time.Second

	// DefaultTargetBatchSize is the target number of conversations per
	// index upsert.
	DefaultTargetBatchSize = 64

	// DefaultUpsertPacing is the minimum delay between consecutive upsert
	// batches.
	DefaultUpsertPacing = 5 * time.Second

	// DefaultPollInterval is how often the queue is drained and due
	// windows are closed.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxUpsertAttempts bounds retries for a failing upsert batch.
	DefaultMaxUpsertAttempts = 3

	// DefaultUpsertRetryWait is the fixed wait between upsert retries.
	DefaultUpsertRetryWait = 2 * time.Second
)

// Config carries the tunables for a Pipeline.
type Config struct {
	SessionGap        time.Duration
	LateGrace         time.Duration
	TargetBatchSize   int
	UpsertPacing      time.Duration
	PollInterval      time.Duration
	MaxUpsertAttempts int
	UpsertRetryWait   time.Duration
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config) error

// NewConfig returns a Config populated with defaults, then adjusted by the
// supplied options.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		SessionGap:        DefaultSessionGap,
		LateGrace:         DefaultLateGrace,
		TargetBatchSize:   DefaultTargetBatchSize,
		UpsertPacing:      DefaultUpsertPacing,
		PollInterval:      DefaultPollInterval,
		MaxUpsertAttempts: DefaultMaxUpsertAttempts,
		UpsertRetryWait:   DefaultUpsertRetryWait,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values that would break the pipeline.
func (c *Config) Validate() error {
	if c.SessionGap <= 0 {
		return ErrInvalidSessionGap
	}
	if c.LateGrace < 0 {
		return ErrInvalidLateGrace
	}
	if c.TargetBatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	return nil
}

// WithSessionGap sets the inactivity gap that splits conversations.
func WithSessionGap(gap time.Duration) ConfigOption {
	return func(c *Config) error {
		c.SessionGap = gap
		return nil
	}
}

// WithLateGrace sets the lateness tolerance for out-of-order messages.
func WithLateGrace(grace time.Duration) ConfigOption {
	return func(c *Config) error {
		c.LateGrace = grace
		return nil
	}
}

// WithTargetBatchSize sets the target conversations per upsert batch.
func WithTargetBatchSize(n int) ConfigOption {
	return func(c *Config) error {
		c.TargetBatchSize = n
		return nil
	}
}

// WithUpsertPacing sets the delay inserted between upsert batches.
func WithUpsertPacing(d time.Duration) ConfigOption {
	return func(c *Config) error {
		c.UpsertPacing = d
		return nil
	}
}

// WithPollInterval sets how often the queue is drained.
func WithPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) error {
		c.PollInterval = d
		return nil
	}
}

// WithMaxUpsertAttempts sets the retry budget per upsert batch.
func WithMaxUpsertAttempts(n int) ConfigOption {
	return func(c *Config) error {
		c.MaxUpsertAttempts = n
		return nil
	}
}

// WithUpsertRetryWait sets the fixed wait between upsert retries.
func WithUpsertRetryWait(d time.Duration) ConfigOption {
	return func(c *Config) error {
		c.UpsertRetryWait = d
		return nil
	}
}
