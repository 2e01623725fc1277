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

import (
	"net"
	"testing"
	"unsafe"

	"github.com/pawelgaczynski/urio/pkg/errors"
	. "github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEncodeSockaddrInet4(t *testing.T) {
	rsa, length, err := encodeSockaddr(net.IPv4(127, 0, 0, 1), 9876)
	NoError(t, err)
	Equal(t, uint32(unix.SizeofSockaddrInet4), length)

	sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&rsa))
	Equal(t, uint16(unix.AF_INET), sa.Family)
	Equal(t, htons(9876), sa.Port)
	Equal(t, [4]byte{127, 0, 0, 1}, sa.Addr)
}

func TestEncodeSockaddrInet6(t *testing.T) {
	rsa, length, err := encodeSockaddr(net.ParseIP("::1"), 80)
	NoError(t, err)
	Equal(t, uint32(unix.SizeofSockaddrInet6), length)

	sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&rsa))
	Equal(t, uint16(unix.AF_INET6), sa.Family)
	Equal(t, htons(80), sa.Port)
	Equal(t, byte(1), sa.Addr[15])
}

func TestAddrEndpointUnsupported(t *testing.T) {
	_, _, err := addrEndpoint(&net.UnixAddr{Name: "/tmp/socket", Net: "unix"})
	ErrorIs(t, err, errors.ErrUnsupportedAddress)
}

func TestHtons(t *testing.T) {
	Equal(t, uint16(0x3930), htons(0x3039))
}
