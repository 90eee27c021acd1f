package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kosync/internal/client/client"
	"github.com/dmitrijs2005/kosync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errEmptyUserName = errors.New("user name must not be empty")

// credentials prompts for a user name and password and returns the user
// name with the derived key. The password never leaves this function.
func (a *App) credentials() (string, string, error) {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return "", "", err
	}
	if userName == "" {
		return "", "", errEmptyUserName
	}

	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(password)

	return userName, client.HashKey(password), nil
}

func (a *App) Register(ctx context.Context) error {
	userName, key, err := a.credentials()
	if err != nil {
		return err
	}

	if err := a.client.Register(ctx, userName, key); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s\n", userName)
	return nil
}

// Login checks the credentials with the server. On success later push and
// pull calls are made as this user.
func (a *App) Login(ctx context.Context) error {
	userName, key, err := a.credentials()
	if err != nil {
		return err
	}

	if err := a.client.Login(ctx, userName, key); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.setUser(userName)
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "Login successful")

	a.flush(ctx)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()
	a.setUser("")
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
