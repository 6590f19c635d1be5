// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package forkaware

// Tunables with their defaults, taken from the reference implementation
// this pool's revalidation policy is modeled on.
const (
	// DefaultRevalidationPeriod is the number of blocks an MP entry may go
	// unrevalidated before it becomes a candidate for the next finalization
	// pass.
	DefaultRevalidationPeriod = 10

	// DefaultMaxRevalidationBatch bounds how many MP entries a single
	// finalization pass will revalidate.
	DefaultMaxRevalidationBatch = 1000

	// DefaultRevalidationWorkers is the size of the fixed worker pool that
	// runs view background revalidation.
	DefaultRevalidationWorkers = 2

	commandQueueSize = 256
	mergedQueueSize  = 256
	statusQueueSize  = 64
)

// config collects the tunables, set up via functional Options the way
// core/txpool's sibling dispatcher exposes a Config struct, but expressed
// as options since this package has no public Config type to embed them
// in (see SPEC_FULL.md §2).
type config struct {
	revalidationPeriod   uint64
	maxRevalidationBatch int
	revalidationWorkers  int
	metricsEnabled       bool
}

func defaultConfig() config {
	return config{
		revalidationPeriod:   DefaultRevalidationPeriod,
		maxRevalidationBatch: DefaultMaxRevalidationBatch,
		revalidationWorkers:  DefaultRevalidationWorkers,
		metricsEnabled:       false,
	}
}

// Option configures a MemPool or ForkAwareTxPool at construction time.
type Option func(*config)

// WithRevalidationPeriod overrides DefaultRevalidationPeriod.
func WithRevalidationPeriod(blocks uint64) Option {
	return func(c *config) { c.revalidationPeriod = blocks }
}

// WithMaxRevalidationBatch overrides DefaultMaxRevalidationBatch.
func WithMaxRevalidationBatch(n int) Option {
	return func(c *config) { c.maxRevalidationBatch = n }
}

// WithRevalidationWorkers overrides DefaultRevalidationWorkers.
func WithRevalidationWorkers(n int) Option {
	return func(c *config) { c.revalidationWorkers = n }
}

// WithMetrics enables the optional MemPool eviction counter.
func WithMetrics(enabled bool) Option {
	return func(c *config) { c.metricsEnabled = enabled }
}
