// Command clauseguard-admin prepares operator secrets and checks deployment
// configuration.
//
// Usage:
//
//	clauseguard-admin hash-password
//	clauseguard-admin seal-key
//	clauseguard-admin check-config
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	config "github.com/avatarctic/clauseguard/configs"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/health"
	"github.com/avatarctic/clauseguard/internal/utils"
)

// CLI defines the command-line interface.
type CLI struct {
	HashPassword HashPasswordCmd `cmd:"" help:"Hash an operator password for OPERATOR_PASSWORD_HASH."`
	SealKey      SealKeyCmd      `cmd:"" help:"Generate a random ACCESS_SEAL_KEY."`
	CheckConfig  CheckConfigCmd  `cmd:"" help:"Check that provider credentials in the environment are well formed."`
}

// HashPasswordCmd reads the password from the terminal, or from stdin when piped.
type HashPasswordCmd struct {
	SkipStrength bool `name:"skip-strength" help:"Accept passwords that fail the strength rules."`
}

func (c *HashPasswordCmd) Run() error {
	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}

	hash, err := utils.HashOperatorPassword(password)
	if c.SkipStrength && err != nil && !errors.Is(err, utils.ErrPasswordTooLong) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", strings.ReplaceAll(err.Error(), "\n", "; "))
		hash, err = utils.HashPassword(password)
	}
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Operator password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// SealKeyCmd prints a hex encoded 32 byte key.
type SealKeyCmd struct{}

func (c *SealKeyCmd) Run() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	encoded := hex.EncodeToString(key)
	if _, err := config.ParseSealKey(encoded); err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

// CheckConfigCmd runs the offline credential checks the server reports on /health.
type CheckConfigCmd struct{}

func (c *CheckConfigCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	checkers := []ports.HealthChecker{
		health.NewStripeKeyChecker(cfg.Stripe.SecretKey),
		health.NewStripeWebhookSecretChecker(cfg.Stripe.WebhookSecret),
		health.NewStripePriceChecker(cfg.Stripe.PriceID),
		health.NewAnthropicKeyChecker(cfg.Anthropic.APIKey),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failed := 0
	for _, hc := range checkers {
		if err := hc.Check(ctx); err != nil {
			failed++
			fmt.Printf("%-24s FAIL  %v\n", hc.Name(), err)
			continue
		}
		fmt.Printf("%-24s ok\n", hc.Name())
	}
	if cfg.Operator.PasswordHash == "" || cfg.Operator.JWTSecret == "" {
		fmt.Printf("%-24s off   operator routes disabled\n", "operator")
	}
	if len(cfg.Access.SealKey) == 0 {
		fmt.Printf("%-24s off   session recovery will not survive restarts\n", "seal_key")
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("clauseguard-admin"),
		kong.Description("Operator tooling for the ClauseGuard API"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
