package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/omvtools/mysqlkeeper/internal/input"
)

// readPassword is swapped in tests to avoid requiring a real terminal.
var readPassword = term.ReadPassword

func ensureInteractiveStdin() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("this operation requires an interactive terminal (stdin is not a TTY)")
	}
	return nil
}

func promptSecret(ctx context.Context, label string) (string, error) {
	fmt.Print(label)
	value, err := input.ReadPasswordWithContext(ctx, readPassword, int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// promptNewPassword asks for the new administrative password twice and
// insists the two entries match.
func promptNewPassword(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", input.ErrInputAborted
		}
		password, err := promptSecret(ctx, "New password: ")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(password) == "" {
			fmt.Println("Password cannot be empty.")
			continue
		}
		confirm, err := promptSecret(ctx, "Retype new password: ")
		if err != nil {
			return "", err
		}
		if password != confirm {
			fmt.Println("Passwords do not match, try again.")
			continue
		}
		return password, nil
	}
}

func promptPassphrase(ctx context.Context) (string, error) {
	passphrase, err := promptSecret(ctx, "Dump passphrase: ")
	if err != nil {
		return "", err
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return passphrase, nil
}

func promptLoginPassword(ctx context.Context, loginUser string) (string, error) {
	password, err := promptSecret(ctx, fmt.Sprintf("Password for database user %s: ", loginUser))
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func promptYesNo(ctx context.Context, reader *bufio.Reader, question string, defaultYes bool) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, input.ErrInputAborted
		}
		fmt.Print(question)
		resp, err := input.ReadLineWithContext(ctx, reader)
		if err != nil {
			return false, err
		}
		resp = strings.TrimSpace(strings.ToLower(resp))
		if resp == "" {
			return defaultYes, nil
		}
		switch resp {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Println("Please answer with 'y' or 'n'.")
		}
	}
}
