package main // Command-line client for the cinema ticketing backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag" // POSIX-style flags

	"github.com/iliyamo/cinema-booking-client/internal/api"
	"github.com/iliyamo/cinema-booking-client/internal/booking"
	"github.com/iliyamo/cinema-booking-client/internal/config"
	"github.com/iliyamo/cinema-booking-client/internal/live"
	"github.com/iliyamo/cinema-booking-client/internal/logger"
	"github.com/iliyamo/cinema-booking-client/internal/session"
	"github.com/iliyamo/cinema-booking-client/internal/storage"
	"github.com/iliyamo/cinema-booking-client/internal/transport"
)

const usage = `usage: cinema-client <command> [flags]

commands:
  register   create an account
  login      authenticate and persist the session
  logout     clear the stored session
  whoami     show the current session
  movies     list the movie catalog
  shows      list shows (optionally --movie)
  seats      show the seat map for a show (--show)
  book       lock seats for a show (--show --seats 1-1,1-2 [--pay])
  pay        pay a pending order (--order)
  orders     list my orders
  refund     refund a paid order (--order)
  watch      follow live seat updates for a show (--show)
`

// app bundles everything a subcommand needs.
type app struct {
	cfg  config.Config
	api  *api.Client
	sess *session.Store
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.OpenSQLite(cfg.StoragePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open session storage:", err)
		os.Exit(1)
	}
	defer store.Close()

	t, err := transport.New(cfg.BaseURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	apiClient := api.NewClient(t)
	sess := session.New(apiClient, store, log)
	t.SetTokenSource(sess)

	a := &app{cfg: cfg, api: apiClient, sess: sess}
	if err := a.run(cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) run(cmd string, args []string) error {
	ctx := context.Background()
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.sess.Logout()
	case "whoami":
		return a.whoami()
	case "movies":
		return a.movies(ctx)
	case "shows":
		return a.shows(ctx, args)
	case "seats":
		return a.seats(ctx, args)
	case "book":
		return a.book(ctx, args)
	case "pay":
		return a.pay(ctx, args)
	case "orders":
		return a.orders(ctx)
	case "refund":
		return a.refund(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.StringP("username", "u", "", "login name (doubles as user id)")
	password := fs.StringP("password", "p", "", "password")
	nickname := fs.String("nickname", "", "display name")
	email := fs.String("email", "", "email address")
	fs.Parse(args)

	data, err := a.api.Register(ctx, api.RegisterRequest{
		Username: *username, Password: *password, Nickname: *nickname, Email: *email,
	})
	if err != nil {
		return err
	}
	fmt.Printf("registered %s, log in to continue\n", data.Username)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.StringP("username", "u", "", "login name")
	password := fs.StringP("password", "p", "", "password")
	fs.Parse(args)

	s, err := a.sess.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (roles %s)\n", s.UserID, strings.Join(s.Roles, ","))
	return nil
}

func (a *app) whoami() error {
	s := a.sess.Current()
	if !s.Authenticated() {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("user %s (%s), roles %s\n", s.UserID, s.Username, strings.Join(s.Roles, ","))
	return nil
}

func (a *app) movies(ctx context.Context) error {
	movies, err := a.api.ListMovies(ctx)
	if err != nil {
		return err
	}
	for _, m := range movies {
		fmt.Printf("%-6s %-24s %3d min  %.1f\n", m.ID, m.Title, m.Duration, m.Rating)
	}
	return nil
}

func (a *app) shows(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shows", flag.ExitOnError)
	movie := fs.String("movie", "", "filter by movie id")
	fs.Parse(args)

	shows, err := a.api.ListShows(ctx, *movie)
	if err != nil {
		return err
	}
	for _, s := range shows {
		fmt.Printf("%-6s %-24s %-10s %s  %d/%d seats free\n",
			s.ID, s.MovieTitle, s.RoomName, s.StartTime, s.AvailableSeats, s.TotalSeats)
	}
	return nil
}

func (a *app) seats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seats", flag.ExitOnError)
	show := fs.String("show", "", "show id")
	fs.Parse(args)

	seats, err := a.api.GetShowSeats(ctx, *show)
	if err != nil {
		return err
	}
	row := 0
	for _, s := range seats {
		if s.Row != row {
			if row != 0 {
				fmt.Println()
			}
			row = s.Row
			fmt.Printf("row %2d: ", row)
		}
		mark := "."
		switch s.Status {
		case "locked":
			mark = "o"
		case "sold":
			mark = "x"
		}
		fmt.Printf("%s ", mark)
	}
	fmt.Println()
	return nil
}

func (a *app) book(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	show := fs.String("show", "", "show id")
	seatList := fs.String("seats", "", "comma-separated seat ids, e.g. 1-1,1-2")
	payNow := fs.Bool("pay", false, "pay immediately after locking")
	fs.Parse(args)

	userID := a.sess.UserID()
	flow := booking.NewFlow(a.api, userID, *show)
	if _, err := flow.RefreshSeats(ctx); err != nil {
		return err
	}
	for _, id := range strings.Split(*seatList, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := flow.Select(id); err != nil {
			return err
		}
	}
	if err := flow.ConfirmSelection(ctx); err != nil {
		return err
	}
	fmt.Printf("order %s locked, total %.2f\n", flow.OrderID(), flow.TotalAmount())

	if *payNow {
		if err := flow.Pay(ctx); err != nil {
			return err
		}
		fmt.Println("paid")
	} else {
		fmt.Println("pay with: cinema-client pay --order", flow.OrderID())
	}
	return nil
}

func (a *app) pay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	order := fs.String("order", "", "order id")
	fs.Parse(args)

	if err := a.api.PayOrder(ctx, *order); err != nil {
		return err
	}
	fmt.Println("paid")
	return nil
}

func (a *app) orders(ctx context.Context) error {
	orders, err := a.api.GetUserOrders(ctx, a.sess.UserID())
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Printf("%-36s %-20s %-8s %7.2f  %s\n",
			o.OrderID, o.MovieTitle, o.Status, o.TotalAmount, strings.Join(o.Seats, ","))
	}
	return nil
}

func (a *app) refund(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refund", flag.ExitOnError)
	order := fs.String("order", "", "order id")
	fs.Parse(args)

	if err := a.api.RefundOrder(ctx, *order); err != nil {
		return err
	}
	fmt.Println("refunded")
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	show := fs.String("show", "", "show id")
	fs.Parse(args)

	feed, err := live.Dial(ctx, a.api.Transport().BaseURL(), *show, nil)
	if err != nil {
		return err
	}
	defer feed.Close()

	fmt.Println("watching seat updates for show", *show, "(ctrl-c to stop)")
	for u := range feed.Updates() {
		for _, s := range u.Seats {
			fmt.Printf("seat %s -> %s\n", s.ID, s.Status)
		}
	}
	return feed.Err()
}
