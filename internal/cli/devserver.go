package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"taskboard/internal/devserver"
	"taskboard/internal/logging"
	"taskboard/internal/model"
)

const idempotencyTTL = 24 * time.Hour

func newDevServerCmd(app *App) *cobra.Command {
	var (
		addr, user, token  string
		jwtSecret, jwksURL string
		redisURL           string
		printToken         bool
	)
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Serve an in-memory task backend with seed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := app.Cfg.Dev
			addr = firstNonEmpty(addr, dev.Addr)
			user = firstNonEmpty(user, dev.User)
			token = firstNonEmpty(token, dev.Token)
			jwtSecret = firstNonEmpty(jwtSecret, dev.JWTSecret)
			jwksURL = firstNonEmpty(jwksURL, dev.JWKSURL)
			redisURL = firstNonEmpty(redisURL, dev.RedisURL)

			log := logging.Component(app.Log, "devserver")
			opts := []devserver.Option{
				devserver.WithUser(model.ID(user)),
				devserver.WithLogger(log),
				devserver.WithSeed(devserver.DefaultSeed(model.ID(user), time.Now())),
			}

			switch {
			case jwksURL != "":
				auth, err := devserver.NewJWKSAuth(jwksURL, time.Hour)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer auth.Close()
				opts = append(opts, devserver.WithAuth(auth))
			case jwtSecret != "":
				auth, err := devserver.NewHS256Auth([]byte(jwtSecret))
				if err != nil {
					return writeErr(cmd, err)
				}
				opts = append(opts, devserver.WithAuth(auth))
				if printToken {
					tok, err := devserver.SignDevToken([]byte(jwtSecret), model.ID(user), 12*time.Hour)
					if err != nil {
						return writeErr(cmd, err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "token: "+tok)
				}
			case token != "":
				opts = append(opts, devserver.WithAuth(devserver.StaticToken{Token: token, User: model.ID(user)}))
			}

			if redisURL != "" {
				ropts, err := redis.ParseURL(redisURL)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("parse redis url: %w", err))
				}
				client := redis.NewClient(ropts)
				defer client.Close()
				if err := client.Ping(ctxOf(cmd)).Err(); err != nil {
					return writeErr(cmd, fmt.Errorf("redis: %w", err))
				}
				opts = append(opts, devserver.WithDeduper(devserver.NewRedisDeduper(client, idempotencyTTL)))
			}

			ctx, stop := signal.NotifyContext(ctxOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.WithField("addr", addr).Info("dev server listening")
			fmt.Fprintf(cmd.ErrOrStderr(), "serving on http://%s (user %s)\n", addr, user)
			return devserver.New(opts...).Start(ctx, addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:8787)")
	f.StringVar(&user, "as", "", "User id the backend treats as the caller")
	f.StringVar(&token, "require-token", "", "Require this bearer token")
	f.StringVar(&jwtSecret, "jwt-secret", "", "Require HS256 JWTs signed with this secret")
	f.StringVar(&jwksURL, "jwks-url", "", "Require JWTs verifiable with this JWKS")
	f.StringVar(&redisURL, "redis-url", "", "Deduplicate Idempotency-Key in Redis")
	f.BoolVar(&printToken, "print-token", false, "With --jwt-secret, print a signed token for the user")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
