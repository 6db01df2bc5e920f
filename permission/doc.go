// Package permission answers RBAC questions per tenant with a casbin
// enforcer behind a Redis decision cache.
//
// # Model
//
// The embedded model is RBAC with domains: p rules are
// (role, tenant, resource, action) and g edges are (subject, role, tenant).
// Groups are ordinary g targets that have their own g edges to roles, so
// membership is (subject, group, tenant) and a group grant is
// (group, role, tenant). "*" matches any resource or action.
//
// # Cache
//
//	permission:{tenant}:{subject}:{resource}:{action}  "true" | "false"
//
// Every mutation walks g edges backwards from the changed node (role to
// holders, group to members) before and after the write and evicts each
// reached subject with SCAN permission:{tenant}:{subject}:*. Eviction is
// O(keys per subject). A per-subject epoch key makes a Check that raced a
// mutation skip its cache write instead of storing a stale decision.
//
// # Architecture boundaries
//
// [Engine] owns decisions and invalidation. [Registry] is a static
// operation to requirement table consulted by middleware before dispatch.
//
// # What this package must NOT do
//
//   - Grant on error. Every failure path returns false.
//   - Import goIdentity, jwt, or session.
package permission
