/*
 *
 * Copyright 2017 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package resolver declares the Address type used to describe a candidate
// endpoint for a subchannel.
package resolver

import "github.com/latticerpc/subchannel/attributes"

// Address represents a server the subchannel may connect to.
type Address struct {
	// Addr is the server address on which a connection will be established.
	// It is the host:port pair passed to net.Dial.
	Addr string

	// ServerName is the name of this address. It is used for TLS/SNI and
	// for identifying the address in logs. If empty, Addr is used instead.
	ServerName string

	// Attributes contains arbitrary data about this address intended for
	// consumption by the load balancing policy.
	Attributes *attributes.Attributes
}

// Endpoint returns the dial target for this address, preferring Addr.
func (a Address) Endpoint() string {
	return a.Addr
}

func (a Address) String() string {
	if a.ServerName != "" {
		return a.ServerName
	}
	return a.Addr
}

// Equal returns whether a and o are identical for the purposes of the
// subchannel transport: same dial target. Attributes are not compared,
// matching the teacher's AddressMap semantics of ignoring most metadata
// for address identity.
func (a Address) Equal(o Address) bool {
	return a.Addr == o.Addr
}
