package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lox/triadsync/internal/client"
	"github.com/lox/triadsync/internal/match"
)

// RoomsCmd prints the server's lobby listing. Listing reclaims rooms both
// participants left.
type RoomsCmd struct {
	RemoteFlags `embed:""`

	Delete      string `kong:"help='Delete this room id instead of listing'"`
	AdminSecret string `kong:"name='admin-secret',env='TRIAD_ADMIN_SECRET',help='Server admin secret, required with --delete'"`
}

func (c *RoomsCmd) Run() error {
	cfg, err := c.participantConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Wait)
	defer cancel()

	if c.Delete != "" {
		if c.AdminSecret == "" {
			return fmt.Errorf("--delete needs --admin-secret or $TRIAD_ADMIN_SECRET")
		}
		if err := client.DeleteRoom(ctx, cfg.ServerURL, c.Delete, c.AdminSecret); err != nil {
			return err
		}
		fmt.Printf("Deleted room %s\n", c.Delete)
		return nil
	}

	rooms, err := client.FetchRooms(ctx, cfg.ServerURL)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No open rooms")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOST\tSEATS\tPHASE\tLOCKED\tCREATED")
	for _, r := range rooms {
		seats := "1/2"
		if r.Full {
			seats = "2/2"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.HostName, seats, r.Phase, locked(r),
			time.UnixMilli(r.CreatedAt).Format(time.DateTime))
	}
	return w.Flush()
}

func locked(r match.Summary) string {
	if r.PasswordProtected {
		return "yes"
	}
	return "no"
}
