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

import "github.com/pawelgaczynski/urio/iouring"

// Ordering constrains how the kernel may schedule an operation relative to
// the rest of the submission stream.
type Ordering int

const (
	// None lets the kernel execute the operation in any order.
	None Ordering = iota
	// Link chains this operation with the next submitted one. The next
	// operation starts only after this one fully succeeds; a short or failed
	// completion cancels the rest of the chain with ECANCELED.
	Link
	// Drain acts as a full barrier: this operation waits for everything
	// submitted before it, and nothing submitted after it starts until it
	// completes.
	Drain
)

func (o Ordering) sqeFlags() uint8 {
	switch o {
	case Link:
		return iouring.SqeIOLink
	case Drain:
		return iouring.SqeIODrain
	default:
		return 0
	}
}

func (o Ordering) String() string {
	switch o {
	case Link:
		return "link"
	case Drain:
		return "drain"
	default:
		return "none"
	}
}
