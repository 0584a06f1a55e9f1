package auth

import "core_bank/internal/domain"

// Authorize gates an operation on a verified identity. An empty allowed set
// admits any authenticated role.
func Authorize(id *domain.Identity, allowed ...domain.Role) error {
	if id == nil || id.UserID == 0 {
		return domain.ErrUnauthenticated
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return domain.ErrForbidden
}
