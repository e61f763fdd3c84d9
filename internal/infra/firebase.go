// README: Firebase Admin SDK initialisation; turns ID tokens into a caller identity.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"ridebook/internal/types"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Identity is the authenticated (userId, role) pair for one request.
type Identity struct {
	UserID types.ID
	Email  string
	Role   Role
}

// TokenVerifier verifies a raw bearer token and returns the caller identity.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier using the Firebase Admin SDK.
// An empty credentialsFile falls back to application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return IdentityFromClaims(token.UID, token.Claims), nil
}

// IdentityFromClaims reads the custom "role" claim; anything unknown is a passenger.
func IdentityFromClaims(uid string, claims map[string]interface{}) *Identity {
	id := &Identity{UserID: types.ID(uid), Role: RolePassenger}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	switch role, _ := claims["role"].(string); Role(role) {
	case RoleDriver:
		id.Role = RoleDriver
	case RoleAdmin:
		id.Role = RoleAdmin
	}
	return id
}
