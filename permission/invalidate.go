package permission

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// AddPolicy grants role the action on resource in tenant.
func (e *Engine) AddPolicy(ctx context.Context, tenantID, role, resource, action string) (bool, error) {
	if err := checkKeyParts(tenantID, resource); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{role}, func() (bool, error) {
		return e.enforcer.AddPolicy(role, tenantID, resource, action)
	})
}

// RemovePolicy revokes a grant previously added with AddPolicy.
func (e *Engine) RemovePolicy(ctx context.Context, tenantID, role, resource, action string) (bool, error) {
	if err := checkKeyParts(tenantID, resource); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{role}, func() (bool, error) {
		return e.enforcer.RemovePolicy(role, tenantID, resource, action)
	})
}

// AddRoleForUser binds subject to role in tenant.
func (e *Engine) AddRoleForUser(ctx context.Context, tenantID, subject, role string) (bool, error) {
	if err := checkKeyParts(tenantID, subject); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{subject}, func() (bool, error) {
		return e.enforcer.AddGroupingPolicy(subject, role, tenantID)
	})
}

// RemoveRoleForUser unbinds subject from role in tenant.
func (e *Engine) RemoveRoleForUser(ctx context.Context, tenantID, subject, role string) (bool, error) {
	if err := checkKeyParts(tenantID, subject); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{subject}, func() (bool, error) {
		return e.enforcer.RemoveGroupingPolicy(subject, role, tenantID)
	})
}

// AddRoleForGroup binds group to role; every member inherits it.
func (e *Engine) AddRoleForGroup(ctx context.Context, tenantID, group, role string) (bool, error) {
	if err := checkKeyParts(tenantID); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{group}, func() (bool, error) {
		return e.enforcer.AddGroupingPolicy(group, role, tenantID)
	})
}

// RemoveRoleForGroup unbinds group from role.
func (e *Engine) RemoveRoleForGroup(ctx context.Context, tenantID, group, role string) (bool, error) {
	if err := checkKeyParts(tenantID); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{group}, func() (bool, error) {
		return e.enforcer.RemoveGroupingPolicy(group, role, tenantID)
	})
}

// AddUserToGroup makes subject a member of group.
func (e *Engine) AddUserToGroup(ctx context.Context, tenantID, subject, group string) (bool, error) {
	if err := checkKeyParts(tenantID, subject); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{subject}, func() (bool, error) {
		return e.enforcer.AddGroupingPolicy(subject, group, tenantID)
	})
}

// RemoveUserFromGroup ends subject's membership of group.
func (e *Engine) RemoveUserFromGroup(ctx context.Context, tenantID, subject, group string) (bool, error) {
	if err := checkKeyParts(tenantID, subject); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{subject}, func() (bool, error) {
		return e.enforcer.RemoveGroupingPolicy(subject, group, tenantID)
	})
}

// RemoveRole drops every rule granted to role and every binding to it in tenant.
func (e *Engine) RemoveRole(ctx context.Context, tenantID, role string) (bool, error) {
	if err := checkKeyParts(tenantID); err != nil {
		return false, err
	}
	return e.mutate(ctx, tenantID, []string{role}, func() (bool, error) {
		rules, err := e.enforcer.RemoveFilteredPolicy(0, role, tenantID)
		if err != nil {
			return false, err
		}
		bindings, err := e.enforcer.RemoveFilteredGroupingPolicy(1, role, tenantID)
		if err != nil {
			return rules, err
		}
		return rules || bindings, nil
	})
}

// mutate runs write and evicts the cached decisions of every subject that
// can reach roots through grouping edges. The reachable set is computed
// both before and after the write so removals that cut edges still evict
// the subjects they disconnected.
func (e *Engine) mutate(ctx context.Context, tenantID string, roots []string, write func() (bool, error)) (bool, error) {
	if !e.loaded.Load() {
		return false, ErrNotLoaded
	}

	affected := e.reachable(tenantID, roots)

	changed, writeErr := write()
	if writeErr != nil {
		writeErr = fmt.Errorf("%w: %v", ErrUnavailable, writeErr)
	}
	if !changed {
		return false, writeErr
	}
	if writeErr == nil && e.saveOnMutate {
		if err := e.SavePolicy(); err != nil {
			writeErr = fmt.Errorf("%w: save policy: %v", ErrUnavailable, err)
		}
	}

	for s := range e.reachable(tenantID, roots) {
		affected[s] = struct{}{}
	}

	if err := e.invalidate(ctx, tenantID, affected); err != nil {
		return true, err
	}
	return true, writeErr
}

// reachable walks grouping edges backwards from roots: role to holders,
// group to members, recursively. The roots are included.
func (e *Engine) reachable(tenantID string, roots []string) map[string]struct{} {
	seen := make(map[string]struct{}, len(roots))
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		queue = append(queue, e.enforcer.GetUsersForRoleInDomain(name, tenantID)...)
	}
	return seen
}

// invalidate bumps each subject's epoch and evicts its cache entries,
// retrying failures. Subjects still failing after the last retry are
// logged with their keys and reported as [ErrInvalidationIncomplete].
func (e *Engine) invalidate(ctx context.Context, tenantID string, subjects map[string]struct{}) error {
	pending := make([]string, 0, len(subjects))
	for s := range subjects {
		pending = append(pending, s)
	}
	sort.Strings(pending)

	failedKeys := make(map[string][]string)
retry:
	for attempt := 0; ; attempt++ {
		var next []string
		for _, subject := range pending {
			if err := e.cache.bump(ctx, tenantID, subject); err != nil {
				failedKeys[subject] = []string{subjectPattern(tenantID, subject)}
				next = append(next, subject)
				continue
			}
			keys, err := e.cache.evict(ctx, tenantID, subject)
			if err != nil {
				if len(keys) == 0 {
					keys = []string{subjectPattern(tenantID, subject)}
				}
				failedKeys[subject] = keys
				next = append(next, subject)
				continue
			}
			delete(failedKeys, subject)
		}
		pending = next
		if len(pending) == 0 || attempt >= e.config.InvalidationRetries {
			break
		}

		select {
		case <-ctx.Done():
			break retry
		case <-time.After(e.config.RetryBackoff * time.Duration(attempt+1)):
		}
	}

	if len(pending) == 0 {
		return nil
	}

	var keys []string
	for _, subject := range pending {
		keys = append(keys, failedKeys[subject]...)
	}
	e.observer.InvalidationFailed(len(keys))
	e.logger.Error().
		Str("tenant", tenantID).
		Strs("subjects", pending).
		Strs("keys", keys).
		Msg("permission cache invalidation incomplete")
	return fmt.Errorf("%w: %d subjects", ErrInvalidationIncomplete, len(pending))
}
