/*
 * Copyright 2025 tomoncle.
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
 */

package query

import "github.com/tomoncle/adminkit/descriptor"

// Projection is the role-filtered column set handed to the data layer.
// Columns is always a subset of the descriptor's declared fields.
type Projection struct {
	Role      descriptor.Role
	Columns   []string
	Requested []string
	Allowed   []string
	Denied    []string
}

// Suspicious reports whether the caller asked for fields outside their
// role's allow-list. That is a signal worth logging, never an error: the
// offending fields are silently dropped from the response.
func (p *Projection) Suspicious() bool { return len(p.Denied) > 0 }

// ResolveFields intersects the caller's requested fields with the role's
// allow-list. With no requested fields the full allow-list is returned, so
// omitting fields never widens the projection beyond the role's visibility.
func ResolveFields(desc *descriptor.Entity, role descriptor.Role, requested []string) *Projection {
	allowed := desc.Policy().Resolve(role)
	p := &Projection{Role: role, Requested: requested, Allowed: allowed}

	if len(requested) == 0 {
		p.Columns = append(p.Columns, allowed...)
		return p
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = true
	}
	for _, f := range requested {
		if allowedSet[f] {
			p.Columns = append(p.Columns, f)
		} else {
			p.Denied = append(p.Denied, f)
		}
	}
	return p
}
