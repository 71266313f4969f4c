package authcore

import (
	"context"
	"errors"

	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

// HasPermission looks the principal up and checks permission against its
// role. Unknown and inactive principals are denied without an error; a
// store failure is ErrBackingStoreUnavailable and never a grant.
func (e *Engine) HasPermission(ctx context.Context, principalID, perm string, resource *ResourceContext) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}

	p, err := e.findByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metricInc(MetricPermissionDenied)
			return false, nil
		}
		e.metricInc(MetricBackendUnavailable)
		return false, backendError(err)
	}
	if !p.Active {
		e.metricInc(MetricPermissionDenied)
		return false, nil
	}

	return e.check(p.ID, p.Role, perm, resource), nil
}

// Authorize checks permission for an already validated token. It does no
// I/O. A denial is ErrInsufficientPermission and is audited.
func (e *Engine) Authorize(ctx context.Context, info *TokenInfo, perm string, resource *ResourceContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if info == nil || info.PrincipalID == "" {
		return ErrInvalidToken
	}
	if e.check(info.PrincipalID, info.Role, perm, resource) {
		return nil
	}

	e.emitAudit(ctx, auditRecord{
		event:       auditEventPermissionDenied,
		principalID: info.PrincipalID,
		sessionID:   info.SessionID,
		reason:      reasonInsufficient,
		metadata: func() map[string]string {
			md := map[string]string{
				"permission": perm,
				"role":       string(info.Role),
			}
			if resource != nil {
				md["owner_id"] = resource.OwnerID
			}
			return md
		},
	})
	return ErrInsufficientPermission
}

// PermissionsFor returns the sorted permission set of role.
func (e *Engine) PermissionsFor(role Role) []string {
	if e == nil || e.resolver == nil {
		return nil
	}
	return e.resolver.PermissionsFor(role)
}

func (e *Engine) check(principalID string, role Role, perm string, resource *ResourceContext) bool {
	var res *permission.Resource
	if resource != nil {
		res = &permission.Resource{OwnerID: resource.OwnerID}
	}

	ok := e.resolver.Has(permission.Subject{ID: principalID, Role: role}, perm, res)
	if ok {
		e.metricInc(MetricPermissionGranted)
	} else {
		e.metricInc(MetricPermissionDenied)
	}
	return ok
}
