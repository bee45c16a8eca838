// cogsrp-demo drives one sign-up and one SRP sign-in against an in-process
// fake identity provider, to exercise the library end-to-end without a real
// user pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/nickarocho/cogsrp/internal/testidp"
	"github.com/nickarocho/cogsrp/pkg/cogsrp"
	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/nickarocho/cogsrp/pkg/slogx"
)

func main() {
	var (
		username = flag.String("username", "demo-user", "username to sign up and authenticate")
		password = flag.String("password", "correct-horse-battery-staple-1!", "password to use for sign-up and authentication")
		logLevel = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := slogx.New(slogx.Config{
		Service: "cogsrp-demo",
		Env:     "dev",
		Level:   *logLevel,
		Format:  "text",
	})

	if err := run(*username, *password, logger); err != nil {
		log.Fatalf("cogsrp-demo: %v", err)
	}
}

func run(username, password string, logger *slog.Logger) error {
	const userPoolID = "us-east-1_demo0001"
	const clientID = "demoapp0000000000000000000000"

	fake := testidp.New("demo0001", clientID)

	pool, err := cogsrp.NewPool(cogsrp.PoolOptions{
		UserPoolID: userPoolID,
		ClientID:   clientID,
		Logger:     logger,
		IdPClient:  idp.NewClient("us-east-1", idp.WithLogger(logger), idp.WithHTTPClient(&http.Client{Transport: fake})),
	})
	if err != nil {
		return fmt.Errorf("constructing pool: %w", err)
	}

	ctx := context.Background()

	signUp, err := pool.SignUp(ctx, username, password, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("signing up: %w", err)
	}
	logger.Info("signed up", "username", signUp.User.Username(), "sub", signUp.UserSub)

	if err := pool.ConfirmRegistration(ctx, username, "000000", false, nil); err != nil {
		return fmt.Errorf("confirming registration: %w", err)
	}

	user, err := cogsrp.NewUser(username, pool)
	if err != nil {
		return fmt.Errorf("constructing user: %w", err)
	}

	next := <-user.AuthenticateCh(ctx, cogsrp.AuthenticationDetails{Username: username, Password: password})
	if next.Err != nil {
		return fmt.Errorf("authenticating: %w", next.Err)
	}
	if next.Kind != cogsrp.NextDone {
		return fmt.Errorf("unexpected challenge after sign-in: %v", next.Kind)
	}

	logger.Info("signed in", "username", username)
	return nil
}
