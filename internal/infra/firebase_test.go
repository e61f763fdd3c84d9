package infra

import "testing"

func TestIdentityFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]interface{}
		want   Role
	}{
		{"driver claim", map[string]interface{}{"role": "driver"}, RoleDriver},
		{"admin claim", map[string]interface{}{"role": "admin"}, RoleAdmin},
		{"no claim", map[string]interface{}{}, RolePassenger},
		{"unknown claim", map[string]interface{}{"role": "root"}, RolePassenger},
		{"non-string claim", map[string]interface{}{"role": 42}, RolePassenger},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := IdentityFromClaims("u1", tc.claims)
			if id.UserID != "u1" {
				t.Errorf("uid = %q", id.UserID)
			}
			if id.Role != tc.want {
				t.Errorf("role = %q, want %q", id.Role, tc.want)
			}
		})
	}
}

func TestIdentityFromClaimsEmail(t *testing.T) {
	id := IdentityFromClaims("u2", map[string]interface{}{"email": "a@b.c"})
	if id.Email != "a@b.c" {
		t.Fatalf("email = %q", id.Email)
	}
}
