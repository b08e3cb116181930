package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/atinyakov/GophShop/internal/client/app"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/lock"
	"github.com/atinyakov/GophShop/internal/client/prompt"
	"github.com/atinyakov/GophShop/internal/client/query"
	"github.com/atinyakov/GophShop/internal/models"
)

const helpText = `Available commands:
  help                 show this list
  login                sign in
  logout               sign out
  whoami               show the signed-in profile
  products             list products
  refresh              refetch the product list
  categories           list categories
  category <slug>      list one category
  delete <id>          delete a product (superadmin)
  background           send the app to the background
  foreground           bring the app back
  unlock               unlock with biometrics
  password             sign out from the lock screen
  keys                 list persisted keys
  exit                 quit`

// lockedCommands are the only commands accepted while the lock screen is up.
var lockedCommands = map[string]bool{"unlock": true, "password": true, "help": true, "exit": true}

// shell is the interactive loop over an App.
type shell struct {
	app    *app.App
	prompt *prompt.Prompter
	out    io.Writer
}

// run reads commands until exit or end of input.
func (s *shell) run(ctx context.Context) {
	for {
		if s.app.View().LockGate {
			fmt.Fprintln(s.out, "Locked. Type 'unlock' or 'password'.")
		}
		line, err := s.prompt.Line("gophshop> ")
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if !s.exec(ctx, args) {
			return
		}
	}
}

// exec runs one command and reports whether the loop should continue.
func (s *shell) exec(ctx context.Context, args []string) bool {
	cmd := args[0]
	if s.app.View().LockGate && !lockedCommands[cmd] {
		fmt.Fprintln(s.out, "App is locked.")
		return true
	}
	s.app.Touch()

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "login":
		s.login(ctx)
	case "logout":
		s.report(s.app.Logout(), "Signed out")
	case "whoami":
		s.whoami(ctx)
	case "products":
		res, err := s.app.Products(ctx)
		s.printProducts(res, err)
	case "refresh":
		res, err := s.app.RefreshProducts(ctx)
		s.printProducts(res, err)
	case "categories":
		s.categories(ctx)
	case "category":
		slug := ""
		if len(args) > 1 {
			slug = args[1]
		}
		res, err := s.app.ProductsByCategory(ctx, slug)
		s.printProducts(res, err)
	case "delete":
		s.delete(args)
	case "background":
		s.app.AppStateChanged(lock.Background)
	case "foreground":
		s.app.AppStateChanged(lock.Active)
	case "unlock":
		s.unlock(ctx)
	case "password":
		s.report(s.app.UsePassword(), "Signed out. Log in again to continue.")
	case "keys":
		for _, k := range s.app.Keys() {
			fmt.Fprintln(s.out, k)
		}
	case "exit":
		fmt.Fprintln(s.out, "Bye")
		return false
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return true
}

func (s *shell) login(ctx context.Context) {
	username, password, err := s.prompt.Credentials()
	if err != nil {
		s.report(err, "")
		return
	}
	sess, err := s.app.Login(ctx, username, password)
	if err != nil {
		s.report(err, "")
		return
	}
	fmt.Fprintf(s.out, "Welcome, %s\n", sess.User.Username)
}

func (s *shell) whoami(ctx context.Context) {
	u, err := s.app.CurrentUser(ctx)
	if err != nil {
		s.report(err, "")
		return
	}
	fmt.Fprintf(s.out, "%s (%s %s) %s\n", u.Username, u.FirstName, u.LastName, u.Email)
}

func (s *shell) categories(ctx context.Context) {
	cats, err := s.app.Categories(ctx)
	if errors.Is(err, app.ErrLocked) || errors.Is(err, app.ErrNotAuthenticated) {
		s.report(err, "")
		return
	}
	if err != nil || len(cats) == 0 {
		cats = catalog.DefaultCategories()
	}
	for _, c := range cats {
		fmt.Fprintf(s.out, "%-20s %s\n", c.Slug, c.Name)
	}
}

func (s *shell) delete(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: delete <id>")
		return
	}
	id, err := models.ParseProductID(args[1])
	if err != nil {
		s.report(err, "")
		return
	}
	confirmed, err := s.prompt.Confirm("Delete product " + id.String() + "?")
	if err != nil || !confirmed {
		return
	}
	remaining, err := s.app.DeleteProduct(id)
	if err != nil {
		s.report(err, "")
		return
	}
	fmt.Fprintf(s.out, "Product deleted. %d products left.\n", len(remaining))
}

func (s *shell) unlock(ctx context.Context) {
	ok, err := s.app.Unlock(ctx)
	switch {
	case errors.Is(err, lock.ErrNoBiometrics):
		fmt.Fprintln(s.out, "Biometrics are not available. Use 'password'.")
	case err != nil:
		s.report(err, "")
	case !ok:
		fmt.Fprintln(s.out, "Authentication failed")
	default:
		fmt.Fprintln(s.out, "Unlocked")
	}
}

func (s *shell) printProducts(res query.Result[[]models.Product], err error) {
	if err != nil {
		s.report(err, "")
		return
	}
	if res.Source == query.Cache {
		fmt.Fprintln(s.out, "Offline: showing saved products.")
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE")
	for _, p := range res.Value {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Category, humanize.FormatFloat("#,###.##", p.Price))
	}
	_ = tw.Flush()
	if !res.FetchedAt.IsZero() {
		fmt.Fprintf(s.out, "Updated %s\n", humanize.Time(res.FetchedAt))
	}
}

func (s *shell) report(err error, ok string) {
	switch {
	case err == nil:
		if ok != "" {
			fmt.Fprintln(s.out, ok)
		}
	case errors.Is(err, app.ErrNotAuthenticated):
		fmt.Fprintln(s.out, "Please log in first.")
	case errors.Is(err, app.ErrLocked):
		fmt.Fprintln(s.out, "App is locked.")
	case errors.Is(err, app.ErrForbidden):
		fmt.Fprintln(s.out, "Only the superadmin can do that.")
	default:
		fmt.Fprintln(s.out, "Error:", err)
	}
}
