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

package descriptor

// Role identifies a caller's resolved privilege level. Roles are supplied by
// the auth layer; the engine only consumes them.
type Role string

const (
	RolePublic Role = "public"
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
)

// requiredRoles must all carry an allow-list; Build rejects descriptors that
// forget one so a new entity cannot ship without declaring its policy.
var requiredRoles = []Role{RolePublic, RoleUser, RoleAdmin}

// AccessPolicy is the role-keyed field allow-list table for one entity.
type AccessPolicy map[Role][]string

// Resolve returns the allow-list for a role. Unknown roles resolve to the
// least-privileged public list.
func (p AccessPolicy) Resolve(role Role) []string {
	if fields, ok := p[role]; ok {
		return fields
	}
	return p[RolePublic]
}

// Allows reports whether a role may see the given field.
func (p AccessPolicy) Allows(role Role, field string) bool {
	for _, f := range p.Resolve(role) {
		if f == field {
			return true
		}
	}
	return false
}
