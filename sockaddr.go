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
	"unsafe"

	"github.com/pawelgaczynski/urio/pkg/errors"
	"golang.org/x/sys/unix"
)

// encodeSockaddr renders an IP endpoint into the raw sockaddr layout the
// kernel expects in a CONNECT entry. IPv4-mapped addresses are encoded as
// AF_INET.
func encodeSockaddr(ip net.IP, port int) (unix.RawSockaddrAny, uint32, error) {
	var rsa unix.RawSockaddrAny

	if ip4 := ip.To4(); ip4 != nil {
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&rsa))
		sa.Family = unix.AF_INET
		sa.Port = htons(uint16(port))
		copy(sa.Addr[:], ip4)

		return rsa, unix.SizeofSockaddrInet4, nil
	}

	if ip16 := ip.To16(); ip16 != nil {
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&rsa))
		sa.Family = unix.AF_INET6
		sa.Port = htons(uint16(port))
		copy(sa.Addr[:], ip16)

		return rsa, unix.SizeofSockaddrInet6, nil
	}

	return rsa, 0, errors.ErrorUnsupportedAddress(ip.String())
}

func addrEndpoint(addr net.Addr) (net.IP, int, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP, a.Port, nil
	case *net.UDPAddr:
		return a.IP, a.Port, nil
	default:
		return nil, 0, errors.ErrorUnsupportedAddress(addr.Network())
	}
}

// htons converts a port to network byte order.
func htons(port uint16) uint16 {
	return port<<8 | port>>8
}
