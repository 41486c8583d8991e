package main

import (
	"fmt"
	"os"
	"time"

	"slotbook/pkg/identity"

	"github.com/alecthomas/kong"
)

type KeygenCmd struct{}

func (c *KeygenCmd) Run() error {
	key, err := identity.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

type IssueCmd struct {
	User string        `arg:"" help:"User id carried by the token."`
	Key  string        `help:"Base64 AES key." env:"IDENTITY_TOKEN_KEY" required:""`
	TTL  time.Duration `help:"Token lifetime." default:"24h"`
}

func (c *IssueCmd) Run() error {
	sealer, err := identity.NewSealer(c.Key)
	if err != nil {
		return err
	}
	token, err := sealer.Seal(c.User, time.Now().Add(c.TTL))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type VerifyCmd struct {
	Token string `arg:"" help:"Bearer token to open."`
	Key   string `help:"Base64 AES key." env:"IDENTITY_TOKEN_KEY" required:""`
}

func (c *VerifyCmd) Run() error {
	sealer, err := identity.NewSealer(c.Key)
	if err != nil {
		return err
	}
	userID, err := sealer.Open(c.Token, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(userID)
	return nil
}

var CLI struct {
	Keygen KeygenCmd `cmd:"" help:"Generate a new IDENTITY_TOKEN_KEY value."`
	Issue  IssueCmd  `cmd:"" help:"Issue a bearer token for a user."`
	Verify VerifyCmd `cmd:"" help:"Open a bearer token and print its user id."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("token"),
		kong.Description("Manage slotbook bearer tokens."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
