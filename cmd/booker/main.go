package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"booker/internal/booking"
	bookingvalidator "booker/internal/booking/validator"
	"booker/internal/remote"
	"booker/internal/storage"
	"booker/pkg/config"
	"booker/pkg/logger"
	"booker/pkg/model"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "booker",
		Usage: "Manage appointment bookings locally, syncing with the booking server when it is reachable.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Usage: "Base URL of the booking server.", EnvVars: []string{config.EnvAPIBaseURL}},
			&cli.StringFlag{Name: "data-dir", Usage: "Directory for the local booking store.", EnvVars: []string{config.EnvDataDir}},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Log verbosity (debug, info, warn, error).", EnvVars: []string{config.EnvLogLevel}},
		},
		Commands: []*cli.Command{
			listCommand(),
			createCommand(),
			updateCommand(),
			deleteCommand(),
			checkCommand(),
			syncCommand(),
			statusCommand(),
			clearCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newService wires the local store, the remote client, and the booking
// service, then probes the backend once so offline mode is decided up front.
func newService(c *cli.Context) (*booking.Service, error) {
	cfg := config.Load("booker")
	if v := c.String("api-url"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := c.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	log := logger.New(logger.Config{Level: c.String("log-level"), Format: "text", Output: os.Stderr, Service: "booker"})

	store, err := storage.NewFileStore(cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client := remote.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)

	svc, err := booking.NewService(store, client, bookingvalidator.New(log), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize booking service: %w", err)
	}

	if !svc.CheckBackend(c.Context) {
		fmt.Fprintln(os.Stderr, "Backend unreachable, working offline.")
	}
	return svc, nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List bookings, optionally filtered by date.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Only show bookings on this date (YYYY-MM-DD)."},
		},
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			var bookings []model.Booking
			if date := c.String("date"); date != "" {
				bookings, err = svc.GetByDate(date)
			} else {
				bookings, err = svc.GetAll()
			}
			if err != nil {
				return err
			}

			if len(bookings) == 0 {
				fmt.Println("No bookings found.")
				return nil
			}
			for _, b := range bookings {
				printBooking(b)
			}
			return nil
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a booking. Applied locally even when the backend is down.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "Customer name."},
			&cli.StringFlag{Name: "email", Required: true, Usage: "Customer email."},
			&cli.StringFlag{Name: "date", Required: true, Usage: "Booking date (YYYY-MM-DD)."},
			&cli.StringFlag{Name: "time", Required: true, Usage: "Start time (HH:MM, 24h)."},
			&cli.IntFlag{Name: "duration", Value: 60, Usage: "Duration in minutes."},
			&cli.StringFlag{Name: "notes", Usage: "Optional notes."},
		},
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			b, err := svc.Create(c.Context, model.BookingForm{
				Name:     c.String("name"),
				Email:    c.String("email"),
				Date:     c.String("date"),
				Time:     c.String("time"),
				Duration: c.Int("duration"),
				Notes:    c.String("notes"),
			})
			if err != nil {
				return err
			}

			fmt.Println("Booking created.")
			printBooking(*b)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of an existing booking.",
		ArgsUsage: "<booking-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "New customer name."},
			&cli.StringFlag{Name: "email", Usage: "New customer email."},
			&cli.StringFlag{Name: "date", Usage: "New date (YYYY-MM-DD)."},
			&cli.StringFlag{Name: "time", Usage: "New start time (HH:MM)."},
			&cli.IntFlag{Name: "duration", Usage: "New duration in minutes."},
			&cli.StringFlag{Name: "notes", Usage: "New notes."},
			&cli.StringFlag{Name: "status", Usage: "New status (confirmed, pending, cancelled)."},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one booking id argument")
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			var patch model.BookingPatch
			if c.IsSet("name") {
				v := c.String("name")
				patch.Name = &v
			}
			if c.IsSet("email") {
				v := c.String("email")
				patch.Email = &v
			}
			if c.IsSet("date") {
				v := c.String("date")
				patch.Date = &v
			}
			if c.IsSet("time") {
				v := c.String("time")
				patch.Time = &v
			}
			if c.IsSet("duration") {
				v := c.Int("duration")
				patch.Duration = &v
			}
			if c.IsSet("notes") {
				v := c.String("notes")
				patch.Notes = &v
			}
			if c.IsSet("status") {
				v := c.String("status")
				patch.Status = &v
			}

			b, err := svc.Update(c.Context, c.Args().First(), patch)
			if err != nil {
				return err
			}

			fmt.Println("Booking updated.")
			printBooking(*b)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a booking.",
		ArgsUsage: "<booking-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one booking id argument")
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			deleted, err := svc.Delete(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("booking %q not found", c.Args().First())
			}

			fmt.Println("Booking deleted.")
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check whether a time slot is free.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Required: true, Usage: "Date (YYYY-MM-DD)."},
			&cli.StringFlag{Name: "time", Required: true, Usage: "Start time (HH:MM)."},
			&cli.IntFlag{Name: "duration", Value: 60, Usage: "Duration in minutes."},
			&cli.StringFlag{Name: "exclude", Usage: "Booking id to ignore when checking."},
		},
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			available, err := svc.IsTimeSlotAvailable(c.Context, c.String("date"), c.String("time"), c.Int("duration"), c.String("exclude"))
			if err != nil {
				return err
			}

			if available {
				fmt.Println("Slot is available.")
			} else {
				fmt.Println("Slot is already booked.")
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the local store with the booking server.",
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			result := svc.Sync(c.Context)
			if !result.Success {
				return fmt.Errorf("sync failed: %s", result.Error)
			}

			fmt.Println("Sync complete.")
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show backend reachability and last sync state.",
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			status, err := svc.SyncStatus()
			if err != nil {
				return err
			}

			if status.BackendAvailable {
				fmt.Println("Backend:      reachable")
			} else {
				fmt.Println("Backend:      unreachable")
			}
			if status.LastSync != nil {
				fmt.Println("Last sync:   ", *status.LastSync)
			} else {
				fmt.Println("Last sync:    never")
			}
			if status.PendingSync {
				fmt.Println("Pending sync: yes")
			} else {
				fmt.Println("Pending sync: no")
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove all local bookings and sync state.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Skip the confirmation prompt."},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				fmt.Print("This removes all local data. Type 'yes' to continue: ")
				var answer string
				_, _ = fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Wait()

			if err := svc.Clear(context.Background()); err != nil {
				return err
			}

			fmt.Println("Local data cleared.")
			return nil
		},
	}
}

func printBooking(b model.Booking) {
	fmt.Printf("%-12s  %s %s  %3dm  %-9s  %s <%s>\n", b.ID, b.Date, b.Time, b.Duration, b.Status, b.Name, b.Email)
	if b.Notes != "" {
		fmt.Printf("%-12s  notes: %s\n", "", b.Notes)
	}
}
