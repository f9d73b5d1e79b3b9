package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.DB.Driver)
			return nil
		},
	}
}

func newSweepCmd(g *globalFlags) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire CONFIRMED and LATE reservations whose grace period has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer st.Close()
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			var clock timewindow.Clock = timewindow.RealClock{}
			if at != "" {
				t, err := time.ParseInLocation("2006-01-02 15:04", at, policy.Location)
				if err != nil {
					return fmt.Errorf("--at must be \"YYYY-MM-DD HH:MM\": %w", err)
				}
				clock = timewindow.NewFixedClock(t)
			}
			eng := service.NewEngine(st, service.Options{Policy: &policy, Clock: clock})
			n, err := eng.SweepExpiredReservations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d reservation(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate expiry as of \"YYYY-MM-DD HH:MM\" instead of now")
	return cmd
}

func newSeedTablesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "seed-tables NUMBER:CAPACITY...",
		Short:   "Create the floor plan; existing table numbers are left alone",
		Example: "  restaurant seed-tables 1:2 2:2 3:4 4:6",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := parseTables(args)
			if err != nil {
				return err
			}
			_, st, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := service.NewEngine(st, service.Options{}).SeedTables(cmd.Context(), tables)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d table(s)\n", n, len(tables))
			return nil
		},
	}
}

// parseTables reads NUMBER:CAPACITY pairs; commas may separate pairs too.
func parseTables(args []string) ([]model.Table, error) {
	var out []model.Table
	for _, arg := range args {
		for _, pair := range strings.Split(arg, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			num, capStr, ok := strings.Cut(pair, ":")
			if !ok {
				return nil, fmt.Errorf("table %q: want NUMBER:CAPACITY", pair)
			}
			n, err1 := strconv.Atoi(num)
			c, err2 := strconv.Atoi(capStr)
			if err := errors.Join(err1, err2); err != nil || n <= 0 || c <= 0 {
				return nil, fmt.Errorf("table %q: number and capacity must be positive integers", pair)
			}
			out = append(out, model.Table{Number: n, Capacity: c})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no tables given")
	}
	return out, nil
}

func newCreateUserCmd(g *globalFlags) *cobra.Command {
	var u model.User
	var password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Add a subscriber or staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Role = strings.ToUpper(strings.TrimSpace(u.Role))
			switch u.Role {
			case model.RoleSubscriber, model.RoleRepresentative, model.RoleManager:
			default:
				return fmt.Errorf("--role must be SUBSCRIBER, REPRESENTATIVE or MANAGER")
			}
			cfg, st, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer st.Close()
			id, err := repository.NewUserRepo(st).Create(cmd.Context(), u, password, cfg.BcryptCost)
			if errors.Is(err, repository.ErrUsernameExists) {
				return fmt.Errorf("user %q already exists", u.Username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", u.Role, strings.ToLower(u.Username), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&u.Role, "role", model.RoleSubscriber, "SUBSCRIBER, REPRESENTATIVE or MANAGER")
	cmd.Flags().StringVar(&u.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&u.Email, "email", "", "contact email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
