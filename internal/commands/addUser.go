package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"parlor/internal/auth"
	"parlor/internal/config"
	"parlor/internal/content"
	"parlor/internal/storage"
)

// AddUser creates a user with a random password directly against the
// database and prints the credentials.
func AddUser(ctx context.Context, username string, cfg *config.Config) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authService, err := auth.NewService(ctx, auth.Config{TokenExpiry: cfg.TokenExpiry}, store)
	if err != nil {
		return err
	}

	password, err := generatePassword()
	if err != nil {
		return err
	}

	identity, err := authService.AddUser(username, password)
	if err != nil {
		return err
	}

	fmt.Printf("\nUser Created Successfully!\n")
	fmt.Printf("User ID:  %s\n", identity.UserID)
	fmt.Printf("Username: %s\n", identity.Username)
	fmt.Printf("Password: %s\n\n", password)
	fmt.Println("Please share the password with the user over a secure channel.")
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
