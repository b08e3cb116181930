package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/diag"
	"github.com/atinyakov/GophShop/internal/client/kv"
	"github.com/atinyakov/GophShop/internal/client/lock"
	"github.com/atinyakov/GophShop/internal/client/query"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/clock"
	"github.com/atinyakov/GophShop/internal/config"
)

// Build wires an App from client options. The bearer token of the session
// is attached to every API request.
func Build(opts *config.ClientOptions, bio lock.Biometrics, clk clock.Clock, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	rep := diag.New(log)

	backup := kv.NewFileSecureStore(opts.BackupDir)
	store := kv.Open(kv.Options{DataDir: opts.DataDir, Passphrase: opts.Passphrase}, backup, rep, log.Named("kv"))

	httpClient, err := api.NewHTTPClient(opts.CAFile, opts.RequestTimeout.Std())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("http client: %w", err)
	}
	client := api.NewClient(opts.BaseURL, httpClient, nil)
	sessions := session.New(store, client, log.Named("session"))
	client.SetTokenSource(sessions)

	cat := catalog.New(client, store, query.Options{
		StaleTime: opts.StaleTime.Std(),
		Clock:     clk,
		Reporter:  rep,
		Logger:    log.Named("catalog"),
	})

	return New(Deps{
		Store:      store,
		Session:    sessions,
		Catalog:    cat,
		Lock:       lock.New(clk, opts.AutoLockTimeout.Std(), log.Named("lock")),
		Biometrics: bio,
		Reporter:   rep,
		Logger:     log,
	}), nil
}
