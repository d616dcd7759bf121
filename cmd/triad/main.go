package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the shared document store server"`
	Play    PlayCmd          `cmd:"" help:"Create or join a room and play interactively"`
	Bot     BotCmd           `cmd:"" help:"Run random-move bots against a store server"`
	Solo    SoloCmd          `cmd:"" help:"Play locally against a random opponent"`
	Rooms   RoomsCmd         `cmd:"" help:"List open rooms on a store server"`
	Token   TokenCmd         `cmd:"" help:"Issue a signed participant token"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("triad"),
		kong.Description("Two-player triad card game synchronized through a shared document store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
