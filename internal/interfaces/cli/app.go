// Package cli implements the mall-admin console commands on top of the
// application services. Every command except login passes the route guard
// before it touches the remote API.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erp/mall-admin/internal/application/auth"
	"github.com/erp/mall-admin/internal/application/form"
	apppms "github.com/erp/mall-admin/internal/application/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/cache"
	"github.com/erp/mall-admin/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("usage error")

// ErrLoginRequired is returned when the guard sends the operator to login
var ErrLoginRequired = shared.NewDomainError("LOGIN_REQUIRED", "Please log in first: mall-admin login -u <username> -p <password>")

// Deps are the collaborators of the console commands
type Deps struct {
	Store     *auth.Store
	Guard     *auth.Guard
	Login     *auth.LoginService
	Catalog   *apppms.Catalog
	Cache     *cache.QueryCache
	Notifier  shared.Notifier
	Confirmer shared.Confirmer
	Navigator shared.Navigator
	In        io.Reader
	Out       io.Writer
	Logger    *zap.Logger
}

// App runs console commands
type App struct {
	deps   Deps
	out    io.Writer
	in     io.Reader
	logger *zap.Logger
}

// New creates the command runner. Out and In default to the process
// streams.
func New(deps Deps) *App {
	a := &App{deps: deps, out: deps.Out, in: deps.In, logger: deps.Logger}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.in == nil {
		a.in = os.Stdin
	}
	a.logger = logger.OrNop(a.logger)
	return a
}

// Run executes one command line, without the program name
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	cmd, rest := args[0], args[1:]
	ctx = logger.WithContext(ctx, a.logger)
	if user := a.deps.Store.User(); user != nil {
		ctx = logger.WithOperator(ctx, user.Username)
	}
	logger.L(ctx).Debug("Running command", zap.String("command", cmd), zap.Strings("args", rest))

	switch cmd {
	case "login":
		return a.runLogin(ctx, rest)
	case "logout":
		return a.runLogout(ctx)
	case "whoami":
		return a.runWhoami(ctx)
	case "list", "batch", "delete", "get", "create", "update", "ops":
		return a.runEntity(ctx, cmd, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// enter passes the guard for location and records the navigation
func (a *App) enter(ctx context.Context, location string) error {
	d := a.deps.Guard.Check(ctx, location)
	if !d.Allowed {
		a.deps.Navigator.Navigate(d.Redirect)
		return ErrLoginRequired
	}
	a.deps.Navigator.Navigate(location)
	return nil
}

func (a *App) collaborators() form.Collaborators {
	return form.Collaborators{
		Cache:     a.deps.Cache,
		Notifier:  a.deps.Notifier,
		Confirmer: a.deps.Confirmer,
		Navigator: a.deps.Navigator,
	}
}

func (a *App) runLogin(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("u", "", "User name")
	password := fs.String("p", "", "Password")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	a.deps.Navigator.Navigate(shared.LoginLocation(a.deps.Navigator.Current()))
	profile, err := a.deps.Login.Login(ctx, auth.LoginInput{Username: *username, Password: *password})
	if err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			a.reportFields(verr.Fields)
		}
		return err
	}

	name := strings.TrimSpace(*username)
	if profile != nil {
		name = profile.Username
	}
	a.deps.Navigator.Navigate(a.deps.Guard.ResumeTarget(a.deps.Navigator.Current()))
	a.deps.Notifier.Success(fmt.Sprintf("Signed in as %s", name))
	return nil
}

func (a *App) runLogout(ctx context.Context) error {
	if err := a.deps.Login.Logout(ctx); err != nil {
		return err
	}
	a.deps.Navigator.Navigate(shared.LoginRoute)
	a.deps.Notifier.Success("Signed out")
	return nil
}

func (a *App) runWhoami(ctx context.Context) error {
	if err := a.enter(ctx, shared.HomeRoute); err != nil {
		return err
	}
	user := a.deps.Store.User()
	if user == nil {
		profile, err := a.deps.Login.FetchProfile(ctx)
		if err != nil {
			return err
		}
		user = profile
	}

	fmt.Fprintf(a.out, "username: %s\n", user.Username)
	if user.NickName != "" {
		fmt.Fprintf(a.out, "nickname: %s\n", user.NickName)
	}
	if len(user.Roles) > 0 {
		fmt.Fprintf(a.out, "roles:    %s\n", strings.Join(user.Roles, ", "))
	}
	if exp, ok := auth.TokenExpiry(a.deps.Store.Token()); ok {
		fmt.Fprintf(a.out, "expires:  %s\n", exp.Local().Format(time.DateTime))
	}
	return nil
}

func (a *App) reportFields(fields map[string]string) {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		a.deps.Notifier.Error(fmt.Sprintf("%s: %s", name, fields[name]))
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positional ones in order
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%w: invalid id %q", ErrUsage, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
