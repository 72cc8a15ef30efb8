package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirebaseUsers counts the storefront's Firebase Authentication accounts.
type FirebaseUsers struct {
	client *auth.Client
}

// NewFirebaseUsers builds a counter from a service account JSON document.
// Private keys pasted into env files often carry escaped newlines; those are
// unescaped first.
func NewFirebaseUsers(ctx context.Context, credentialsJSON string) (*FirebaseUsers, error) {
	creds := strings.ReplaceAll(credentialsJSON, `\\n`, `\n`)

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON([]byte(creds)))
	if err != nil {
		return nil, fmt.Errorf("firebase: failed to initialize app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: failed to create auth client: %w", err)
	}

	return &FirebaseUsers{client: client}, nil
}

func (f *FirebaseUsers) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	it := f.client.Users(ctx, "")
	for {
		_, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("firebase: failed to list users: %w", err)
		}
		n++
	}
}
