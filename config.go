// Copyright (c) 2023 Paweł Gaczyński
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

package urio

import "github.com/rs/zerolog"

const defaultDepth uint = 256

type ConfigOption[T any] func(*T)

type RingOption ConfigOption[Config]

type Config struct {
	depth              uint
	sqPoll             bool
	ioPoll             bool
	lazyReaper         bool
	asyncWorkers       int
	printProfileOnDrop bool
	loggerLevel        zerolog.Level
	prettyLogger       bool
}

// WithDepth sets the submission queue depth. Must be a power of two.
// The kernel sizes the completion queue at twice this number, which is
// also the maximum number of in-flight operations.
func WithDepth(depth uint) RingOption {
	return func(c *Config) {
		c.depth = depth
	}
}

// WithSQPoll requests a kernel-side submission polling thread so that
// submits need no syscall. Privileged on most kernels.
func WithSQPoll(sqPoll bool) RingOption {
	return func(c *Config) {
		c.sqPoll = sqPoll
	}
}

// WithIOPoll requests kernel-side completion polling.
func WithIOPoll(ioPoll bool) RingOption {
	return func(c *Config) {
		c.ioPoll = ioPoll
	}
}

// WithLazyReaper disables the background reaper goroutine. Completions are
// then drained by whichever waiter finds its operation still pending.
func WithLazyReaper(lazyReaper bool) RingOption {
	return func(c *Config) {
		c.lazyReaper = lazyReaper
	}
}

// WithAsyncWorkers dispatches completion callbacks on a worker pool of the
// given size instead of running them inline on the reaper.
func WithAsyncWorkers(workers int) RingOption {
	return func(c *Config) {
		c.asyncWorkers = workers
	}
}

// WithPrintProfileOnDrop prints per-stage latency histograms when the ring
// is closed.
func WithPrintProfileOnDrop(print bool) RingOption {
	return func(c *Config) {
		c.printProfileOnDrop = print
	}
}

func WithLoggerLevel(level zerolog.Level) RingOption {
	return func(c *Config) {
		c.loggerLevel = level
	}
}

func WithPrettyLogger(pretty bool) RingOption {
	return func(c *Config) {
		c.prettyLogger = pretty
	}
}

func defaultConfig() Config {
	return Config{
		depth:       defaultDepth,
		loggerLevel: zerolog.ErrorLevel,
	}
}
