package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"daily_video_bot/internal/domain/subscriber"
	idb "daily_video_bot/internal/infra/database"

	"github.com/urfave/cli"
)

const usageText = `subsctl [global options] <command> [arguments...]

Inspects and edits the subscriber store used by the bot. A subscriber removed here
stops receiving videos at its next scheduled delivery.`

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "database-url, d",
		Value:  "sqlite://users.db",
		EnvVar: "DATABASE_URL",
		Usage:  "subscriber store (postgres://, sqlite://, redis://)",
	},
	cli.StringFlag{
		Name:   "redis-prefix",
		Value:  "videobot",
		EnvVar: "REDIS_KEY_PREFIX",
		Usage:  "key prefix for redis stores",
	},
	cli.DurationFlag{
		Name:  "timeout",
		Value: 10 * time.Second,
		Usage: "per command timeout",
	},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "subsctl"
	app.HelpName = "subsctl"
	app.Usage = "operator tool for the daily video bot subscriber store"
	app.UsageText = usageText
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:    "list",
			Aliases: []string{"l"},
			Usage:   "list all subscribers",
			Action:  withStore(list),
		},
		{
			Name:      "show",
			Usage:     "show one subscriber",
			ArgsUsage: "<chat_id>",
			Action:    withStore(show),
		},
		{
			Name:      "remove",
			Aliases:   []string{"rm"},
			Usage:     "delete a subscriber and its progress",
			ArgsUsage: "<chat_id>",
			Action:    withStore(remove),
		},
		{
			Name:   "schema",
			Usage:  "create the subscriber schema if it does not exist",
			Action: withStore(schema),
		},
	}
	return app
}

type storeAction func(ctx context.Context, c *cli.Context, repo subscriber.Repository) error

func withStore(fn storeAction) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
		defer cancel()

		repo, err := idb.Open(ctx, c.GlobalString("database-url"), c.GlobalString("redis-prefix"))
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("open store: %v", err), 1)
		}
		defer repo.Close()
		return fn(ctx, c, repo)
	}
}

func chatIDArg(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, cli.NewExitError("expected exactly one <chat_id> argument", 2)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, cli.NewExitError(fmt.Sprintf("invalid chat_id %q", c.Args().First()), 2)
	}
	return id, nil
}

func list(ctx context.Context, c *cli.Context, repo subscriber.Repository) error {
	subs, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAT_ID\tREGISTERED_AT\tCURSOR")
	for _, s := range subs {
		fmt.Fprintf(w, "%d\t%s\t%d\n", s.ChatID, s.RegisteredAt.UTC().Format(time.RFC3339), s.Cursor)
	}
	return w.Flush()
}

func show(ctx context.Context, c *cli.Context, repo subscriber.Repository) error {
	id, err := chatIDArg(c)
	if err != nil {
		return err
	}
	s, err := repo.Get(ctx, id)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("chat %d: %v", id, err), 1)
	}
	fmt.Fprintf(c.App.Writer, "chat_id:       %d\n", s.ChatID)
	fmt.Fprintf(c.App.Writer, "registered_at: %s\n", s.RegisteredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(c.App.Writer, "cursor:        %d\n", s.Cursor)
	return nil
}

func remove(ctx context.Context, c *cli.Context, repo subscriber.Repository) error {
	id, err := chatIDArg(c)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d\n", id)
	return nil
}

func schema(ctx context.Context, c *cli.Context, repo subscriber.Repository) error {
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema ready")
	return nil
}
