package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"core_bank/internal/domain"
)

func TestAuthorize(t *testing.T) {
	client := &domain.Identity{UserID: 1, Role: domain.RoleClient}
	teller := &domain.Identity{UserID: 3, Role: domain.RoleTeller}

	tests := []struct {
		name    string
		id      *domain.Identity
		allowed []domain.Role
		want    error
	}{
		{"nil identity", nil, nil, domain.ErrUnauthenticated},
		{"zero identity", &domain.Identity{}, nil, domain.ErrUnauthenticated},
		{"any role", client, nil, nil},
		{"teller allowed", teller, []domain.Role{domain.RoleTeller}, nil},
		{"client refused", client, []domain.Role{domain.RoleTeller}, domain.ErrForbidden},
		{"one of many", client, []domain.Role{domain.RoleTeller, domain.RoleClient}, nil},
		{"unknown role", &domain.Identity{UserID: 9, Role: "admin"}, []domain.Role{domain.RoleClient}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.id, tt.allowed...)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
