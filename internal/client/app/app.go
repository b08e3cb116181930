// Package app is the client's application context. It owns the store, the
// session, the catalog and the lock machine, and exposes a read-only View
// for presentation code.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/diag"
	"github.com/atinyakov/GophShop/internal/client/kv"
	"github.com/atinyakov/GophShop/internal/client/lock"
	"github.com/atinyakov/GophShop/internal/client/query"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

// ErrForbidden is returned for superadmin-only actions.
var ErrForbidden = errors.New("action requires superadmin")

// ErrLocked is returned while the lock gate is shown.
var ErrLocked = errors.New("app is locked")

// ErrNotAuthenticated is returned when no one is signed in.
var ErrNotAuthenticated = errors.New("not signed in")

// View is what presentation code may read.
type View struct {
	Authenticated bool
	SuperAdmin    bool
	Username      string
	// LockGate is true when the lock screen must be shown: signed in and locked.
	LockGate   bool
	UsingCache bool
}

// Deps are the collaborators of an App.
type Deps struct {
	Store      kv.Store
	Session    *session.Store
	Catalog    *catalog.Catalog
	Lock       *lock.Machine
	Biometrics lock.Biometrics
	Reporter   *diag.Reporter
	Logger     *zap.Logger
}

// App is the application context.
type App struct {
	store   kv.Store
	session *session.Store
	catalog *catalog.Catalog
	lock    *lock.Machine
	bio     lock.Biometrics
	rep     *diag.Reporter
	log     *zap.Logger
}

// New assembles an App from deps.
func New(deps Deps) *App {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rep := deps.Reporter
	if rep == nil {
		rep = diag.New(log)
	}
	return &App{
		store:   deps.Store,
		session: deps.Session,
		catalog: deps.Catalog,
		lock:    deps.Lock,
		bio:     deps.Biometrics,
		rep:     rep,
		log:     log,
	}
}

// Bootstrap restores a persisted session and starts the lock timer.
func (a *App) Bootstrap() {
	if sess, ok := a.session.Restore(); ok {
		a.log.Info("session restored", zap.String("username", sess.User.Username))
	}
	a.log.Debug("persisted keys", zap.Strings("keys", a.store.Keys()))
	a.lock.Start()
}

// View returns the current read-only projection.
func (a *App) View() View {
	sess, ok := a.session.Current()
	v := View{
		Authenticated: ok,
		UsingCache:    a.catalog.UsingCache(),
	}
	if ok {
		v.SuperAdmin = sess.IsSuperAdmin()
		v.Username = sess.User.Username
		v.LockGate = a.lock.Locked()
	}
	return v
}

// Login signs in and starts the session unlocked.
func (a *App) Login(ctx context.Context, username, password string) (session.Session, error) {
	sess, err := a.session.Login(ctx, username, password)
	if err != nil {
		return session.Session{}, err
	}
	a.lock.Reset()
	return sess, nil
}

// Logout signs out.
func (a *App) Logout() error {
	return a.session.Logout()
}

// CurrentUser refreshes the signed-in user's profile. The superadmin session
// is local and is answered from memory.
func (a *App) CurrentUser(ctx context.Context) (*models.User, error) {
	sess, err := a.gate()
	if err != nil {
		return nil, err
	}
	if sess.IsSuperAdmin() {
		return sess.User, nil
	}
	return a.session.RefreshUser(ctx)
}

// Unlock runs the biometric challenge.
func (a *App) Unlock(ctx context.Context) (bool, error) {
	return a.lock.Unlock(ctx, a.bio)
}

// UsePassword takes the lock screen's password path, which signs out.
func (a *App) UsePassword() error {
	return a.lock.UsePassword(a.session.Logout)
}

// Touch records user interaction.
func (a *App) Touch() {
	a.lock.Touch()
}

// AppStateChanged forwards a foreground state change to the lock.
func (a *App) AppStateChanged(s lock.AppState) {
	a.lock.AppStateChanged(s)
}

// Products serves the product list.
func (a *App) Products(ctx context.Context) (query.Result[[]models.Product], error) {
	if _, err := a.gate(); err != nil {
		return query.Result[[]models.Product]{}, err
	}
	return a.catalog.Products(ctx)
}

// RefreshProducts refetches the product list.
func (a *App) RefreshProducts(ctx context.Context) (query.Result[[]models.Product], error) {
	if _, err := a.gate(); err != nil {
		return query.Result[[]models.Product]{}, err
	}
	return a.catalog.RefreshProducts(ctx)
}

// Categories lists the categories.
func (a *App) Categories(ctx context.Context) ([]models.Category, error) {
	if _, err := a.gate(); err != nil {
		return nil, err
	}
	return a.catalog.Categories(ctx)
}

// ProductsByCategory lists one category.
func (a *App) ProductsByCategory(ctx context.Context, slug string) (query.Result[[]models.Product], error) {
	if _, err := a.gate(); err != nil {
		return query.Result[[]models.Product]{}, err
	}
	return a.catalog.ProductsByCategory(ctx, slug)
}

// DeleteProduct removes a product. Only the superadmin may delete.
func (a *App) DeleteProduct(id models.ProductID) ([]models.Product, error) {
	sess, err := a.gate()
	if err != nil {
		return nil, err
	}
	if !sess.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	return a.catalog.DeleteProduct(id), nil
}

// Keys lists the persisted keys.
func (a *App) Keys() []string {
	return a.store.Keys()
}

// Close stops the lock timer, waits for background work and closes the store.
func (a *App) Close() error {
	a.lock.Stop()
	a.rep.Wait()
	return a.store.Close()
}

func (a *App) gate() (session.Session, error) {
	sess, ok := a.session.Current()
	if !ok {
		return session.Session{}, ErrNotAuthenticated
	}
	if a.lock.Locked() {
		return session.Session{}, ErrLocked
	}
	return sess, nil
}
