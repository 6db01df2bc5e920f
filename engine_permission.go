package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
)

// Authorize validates token and checks that its principal may perform
// action on resource in the token's tenant. Denials return
// [ErrPermissionDenied] and never count against the login throttle.
func (e *Engine) Authorize(ctx context.Context, token, resource, action string) (*Principal, error) {
	p, err := e.ValidateAccess(ctx, token)
	if err != nil {
		return nil, err
	}

	allowed, err := e.Check(ctx, p.TenantID, p.ID, resource, action)
	if err != nil {
		return nil, err
	}
	if !allowed {
		e.emitAudit(ctx, auditEventPermissionDenied, false, p.TenantID, p.ID, "", ErrPermissionDenied,
			func() map[string]string {
				return map[string]string{"resource": resource, "action": action}
			})
		return nil, ErrPermissionDenied
	}
	return p, nil
}

// AuthorizeOperation is Authorize with the requirement looked up in the
// operation registry. Unregistered operations return [ErrUnknownOperation].
func (e *Engine) AuthorizeOperation(ctx context.Context, token, operation string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	req, ok := e.registry.Requirement(operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	return e.Authorize(ctx, token, req.Resource, req.Action)
}

// Check describes the check operation and its observable behavior.
//
// Check answers from the decision cache when it can and from the policy
// otherwise. A store failure or deadline returns false with
// [ErrServiceUnavailable].
//
//	Performance: 1 Redis GET on a cache hit.
func (e *Engine) Check(ctx context.Context, tenantID, subject, resource, action string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	allowed, err := e.permissions.Check(ctx, tenantID, subject, resource, action)
	e.observe(MetricCheckLatency, start)
	if err != nil {
		return false, e.permissionError(err)
	}
	if allowed {
		e.metricInc(MetricPermissionAllowed)
	} else {
		e.metricInc(MetricPermissionDenied)
	}
	return allowed, nil
}

// BatchCheck evaluates every pair concurrently and keys the result by
// "resource:action". Any failure denies the whole batch.
func (e *Engine) BatchCheck(ctx context.Context, tenantID, subject string, pairs []PermissionPair) (map[string]bool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, err := e.permissions.BatchCheck(ctx, tenantID, subject, pairs)
	if err != nil {
		return nil, e.permissionError(err)
	}
	for _, allowed := range out {
		if allowed {
			e.metricInc(MetricPermissionAllowed)
		} else {
			e.metricInc(MetricPermissionDenied)
		}
	}
	return out, nil
}

func (e *Engine) permissionError(err error) error {
	switch {
	case errors.Is(err, permission.ErrNotLoaded):
		return ErrEngineNotReady
	case errors.Is(err, permission.ErrInvalidKeyPart):
		return fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	case errors.Is(err, permission.ErrInvalidationIncomplete):
		return fmt.Errorf("%w: %v", ErrInvalidationIncomplete, err)
	default:
		return e.unavailable(err)
	}
}

/*
====================================
POLICY MUTATIONS
====================================
*/

// AddPolicy grants role the action on resource in tenant and evicts the
// cached decisions of every subject holding role, directly or through a
// group. It returns false when the rule already existed.
//
// A persisted change whose eviction did not complete returns true with
// [ErrInvalidationIncomplete].
func (e *Engine) AddPolicy(ctx context.Context, tenantID, role, resource, action string) (bool, error) {
	return e.mutatePolicy(ctx, "add_policy", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.AddPolicy(ctx, tenantID, role, resource, action)
	}, "role", role, "resource", resource, "action", action)
}

// RemovePolicy describes the removepolicy operation and its observable behavior.
func (e *Engine) RemovePolicy(ctx context.Context, tenantID, role, resource, action string) (bool, error) {
	return e.mutatePolicy(ctx, "remove_policy", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.RemovePolicy(ctx, tenantID, role, resource, action)
	}, "role", role, "resource", resource, "action", action)
}

// AddRoleForUser describes the addroleforuser operation and its observable behavior.
func (e *Engine) AddRoleForUser(ctx context.Context, tenantID, subject, role string) (bool, error) {
	return e.mutatePolicy(ctx, "add_role_for_user", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.AddRoleForUser(ctx, tenantID, subject, role)
	}, "subject", subject, "role", role)
}

// RemoveRoleForUser describes the removeroleforuser operation and its observable behavior.
func (e *Engine) RemoveRoleForUser(ctx context.Context, tenantID, subject, role string) (bool, error) {
	return e.mutatePolicy(ctx, "remove_role_for_user", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.RemoveRoleForUser(ctx, tenantID, subject, role)
	}, "subject", subject, "role", role)
}

// AddRoleForGroup binds group to role; members' cached decisions are evicted.
func (e *Engine) AddRoleForGroup(ctx context.Context, tenantID, group, role string) (bool, error) {
	return e.mutatePolicy(ctx, "add_role_for_group", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.AddRoleForGroup(ctx, tenantID, group, role)
	}, "group", group, "role", role)
}

// RemoveRoleForGroup describes the removeroleforgroup operation and its observable behavior.
func (e *Engine) RemoveRoleForGroup(ctx context.Context, tenantID, group, role string) (bool, error) {
	return e.mutatePolicy(ctx, "remove_role_for_group", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.RemoveRoleForGroup(ctx, tenantID, group, role)
	}, "group", group, "role", role)
}

// AddUserToGroup describes the addusertogroup operation and its observable behavior.
func (e *Engine) AddUserToGroup(ctx context.Context, tenantID, subject, group string) (bool, error) {
	return e.mutatePolicy(ctx, "add_user_to_group", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.AddUserToGroup(ctx, tenantID, subject, group)
	}, "subject", subject, "group", group)
}

// RemoveUserFromGroup describes the removeuserfromgroup operation and its observable behavior.
func (e *Engine) RemoveUserFromGroup(ctx context.Context, tenantID, subject, group string) (bool, error) {
	return e.mutatePolicy(ctx, "remove_user_from_group", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.RemoveUserFromGroup(ctx, tenantID, subject, group)
	}, "subject", subject, "group", group)
}

// RemoveRole drops every rule of role and every binding to it in tenant.
func (e *Engine) RemoveRole(ctx context.Context, tenantID, role string) (bool, error) {
	return e.mutatePolicy(ctx, "remove_role", tenantID, func(ctx context.Context) (bool, error) {
		return e.permissions.RemoveRole(ctx, tenantID, role)
	}, "role", role)
}

func (e *Engine) mutatePolicy(
	ctx context.Context,
	op string,
	tenantID string,
	fn func(context.Context) (bool, error),
	kv ...string,
) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	changed, err := fn(ctx)
	metadata := func() map[string]string {
		m := map[string]string{"op": op, "changed": fmt.Sprint(changed)}
		for i := 0; i+1 < len(kv); i += 2 {
			m[kv[i]] = kv[i+1]
		}
		return m
	}

	if changed {
		e.metricInc(MetricPermissionMutation)
	}
	if err != nil {
		err = e.permissionError(err)
		eventType := auditEventPermissionMutation
		if errors.Is(err, ErrInvalidationIncomplete) {
			eventType = auditEventInvalidationIncomplete
		}
		e.emitAudit(ctx, eventType, false, tenantID, "", "", err, metadata)
		return changed, err
	}

	if changed {
		e.emitAudit(ctx, auditEventPermissionMutation, true, tenantID, "", "", nil, metadata)
	}
	return changed, nil
}

/*
====================================
POLICY READS
====================================
*/

// RolesForUser returns the roles directly bound to subject in tenant.
func (e *Engine) RolesForUser(tenantID, subject string) []string {
	return e.permissions.RolesForUser(tenantID, subject)
}

// UsersForRole returns the subjects and groups directly bound to role in tenant.
func (e *Engine) UsersForRole(tenantID, role string) []string {
	return e.permissions.UsersForRole(tenantID, role)
}

// FilteredPolicy returns role's rules in tenant as [role, tenant, resource, action].
func (e *Engine) FilteredPolicy(tenantID, role string) ([][]string, error) {
	rules, err := e.permissions.FilteredPolicy(tenantID, role)
	if err != nil {
		return nil, e.unavailable(err)
	}
	return rules, nil
}

// ImplicitPermissions returns every rule subject reaches in tenant through
// roles and groups.
func (e *Engine) ImplicitPermissions(tenantID, subject string) ([][]string, error) {
	rules, err := e.permissions.ImplicitPermissions(tenantID, subject)
	if err != nil {
		return nil, e.unavailable(err)
	}
	return rules, nil
}

// embeddedPermissions renders subject's implicit rules as "resource:action"
// for the access token permissions claim.
func (e *Engine) embeddedPermissions(_ context.Context, p Principal) ([]string, error) {
	rules, err := e.permissions.ImplicitPermissions(p.TenantID, p.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if len(r) < 4 {
			continue
		}
		key := permission.Pair{Resource: r[2], Action: r[3]}.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}
