package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/garrison/internal/common"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// Login asks for the bearer token issued for this device and keeps it in the
// local store. The input buffer is wiped before returning.
func (a *App) Login(ctx context.Context, _ []string) error {
	secret, err := getSecret(a.out, "Enter token")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	if len(secret) == 0 {
		return errors.New("empty token")
	}
	if err := a.store.SetAuthToken(ctx, string(secret)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token saved")
	return nil
}

// Logout forgets the stored token. A token given in configuration still
// applies.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.store.ClearAuthToken(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token removed")
	return nil
}
