// Package permission resolves role based, ownership scoped permissions.
//
// Permissions are strings of the form resource:action with an optional
// scope suffix. ":own" limits the grant to resources the caller owns,
// ":all" grants it for any resource and implies the ":own" variant.
//
// The role set is closed ([AllRoles]) and the role to permission [Table]
// is validated at construction: every role must map to a non-empty set.
// The administrative role bypasses the table entirely.
//
// The package is pure in-memory state with no I/O.
package permission
