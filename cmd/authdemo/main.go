// Command authdemo exercises the full credential lifecycle against a real or
// in-process issuer: authorize URL construction, code exchange with PKCE,
// token verification, and the transparent refresh path.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"github.com/authbridge/authbridge/client"
	"github.com/authbridge/authbridge/client/mock"
	"github.com/authbridge/authbridge/oauth"
	"github.com/authbridge/authbridge/store"
)

// Options are the command line flags.
type Options struct {
	Issuer    string `short:"i" long:"issuer" description:"Issuer URL; when empty an in-process mock issuer is started"`
	ClientID  string `short:"c" long:"client-id" description:"OAuth client identifier" default:"mock-client"`
	StorePath string `short:"s" long:"store" description:"Credential store file; empty keeps state in memory"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return
		}
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	backing, err := openStore(options.StorePath)
	if err != nil {
		return err
	}
	tokens := oauth.NewTokenStore(backing)

	issuerURL := options.Issuer
	if issuerURL == "" {
		server, err := mock.NewAuthorizationServer(
			mock.WithClientID(options.ClientID),
			mock.WithTokenStore(tokens),
		)
		if err != nil {
			return err
		}
		defer server.Close()
		issuerURL = server.Issuer
		logger.Info("started in-process issuer", "issuer", issuerURL)
	}

	verifier, err := client.New(
		client.WithIssuer(issuerURL),
		client.WithClientID(options.ClientID),
		client.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	redirectURI := "http://localhost/callback"
	authorization, err := verifier.AuthorizeURL(ctx, redirectURI, "code",
		&client.AuthorizeOptions{PKCE: true})
	if err != nil {
		return err
	}
	logger.Info("authorize URL constructed", "url", authorization.URL)

	// Skip the browser: mint a code directly, as the authorize endpoint would.
	payload, _ := json.Marshal(map[string]string{"id": "demo-user"})
	grant := oauth.Grant{Type: "user", Payload: payload}
	challenge := oauth.PKCE{Challenge: oauth.ChallengeS256(authorization.Verifier), Method: oauth.MethodS256}
	code, err := newCode(tokens, grant, options.ClientID, redirectURI, challenge)
	if err != nil {
		return err
	}

	pair, err := verifier.Exchange(ctx, code, redirectURI, authorization.Verifier)
	if err != nil {
		return err
	}
	logger.Info("exchanged authorization code for tokens")

	schemas := client.SubjectSchemas{
		"user": client.SchemaFunc(func(properties json.RawMessage) error {
			var props struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(properties, &props); err != nil {
				return err
			}
			if props.ID == "" {
				return errors.New("property id is required")
			}
			return nil
		}),
	}

	result, err := verifier.Verify(ctx, schemas, pair.Access,
		&client.VerifyOptions{RefreshToken: pair.Refresh})
	if err != nil {
		return err
	}
	logger.Info("verified subject", "type", result.Subject.Type, "properties", string(result.Subject.Properties))

	refreshed, err := verifier.Refresh(ctx, pair.Refresh,
		&client.RefreshOptions{AccessToken: pair.Access})
	if err != nil {
		return err
	}
	if refreshed == nil {
		logger.Info("access token still valid, refresh skipped")
	} else {
		logger.Info("tokens refreshed")
	}
	return nil
}

func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewFileStore(path)
}

func newCode(tokens *oauth.TokenStore, grant oauth.Grant, clientID, redirectURI string, pkce oauth.PKCE) (string, error) {
	code := uuid.NewString()
	err := tokens.SetAuthorizationCode(code, oauth.AuthorizationCode{
		Grant:       grant,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		PKCE:        &pkce,
	}, 10*time.Minute)
	if err != nil {
		return "", err
	}
	return code, nil
}
