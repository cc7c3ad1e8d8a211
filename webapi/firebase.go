package webapi

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// FirebaseVerifier validates Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	authClient *auth.Client
}

func NewFirebaseVerifier(authClient *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{authClient: authClient}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	token, err := v.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("while verifying ID token: %w", err)
	}
	return token.UID, nil
}
