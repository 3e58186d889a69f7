// Command unitime is the CLI front end for the unitime daemon.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	if err := Execute(os.Args); err != nil {
		fmt.Println("unitime:", err.Error())
		os.Exit(1)
	}
}

// Execute builds and runs the CLI application.
func Execute(args []string) error {
	app := cli.App{
		Name:      "unitime",
		HelpName:  "unitime",
		Usage:     "university schedule and news, resilient to flaky campus networks",
		Version:   version,
		UsageText: "unitime <command> [arguments...]",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "addr",
				Usage: "daemon RPC address",
				Value: "",
			},
		},
		Commands: []cli.Command{
			{
				Name:    "schedule",
				Aliases: []string{"s"},
				Usage:   "show the weekly schedule for a group or teacher",
				Action:  schedule,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "group, g", Usage: "group name"},
					cli.StringFlag{Name: "teacher, t", Usage: "teacher name"},
					cli.IntFlag{Name: "week, w", Usage: "academic week number (0 = current)"},
				},
			},
			{
				Name:   "today",
				Usage:  "show today's lessons for a group",
				Action: today,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "group, g", Usage: "group name"},
				},
			},
			{
				Name:    "news",
				Aliases: []string{"n"},
				Usage:   "show the latest university news",
				Action:  newsCmd,
				Flags: []cli.Flag{
					cli.IntFlag{Name: "amount, n", Usage: "number of items", Value: 10},
					cli.IntFlag{Name: "offset", Usage: "pagination offset"},
				},
			},
			{
				Name:   "groups",
				Usage:  "list groups for a course year",
				Action: groups,
				Flags: []cli.Flag{
					cli.IntFlag{Name: "course, c", Usage: "course year", Value: 1},
				},
			},
			{
				Name:   "slots",
				Usage:  "show the class period table",
				Action: slots,
			},
			{
				Name:   "settings",
				Usage:  "show or change notification settings",
				Action: settingsShow,
				Subcommands: []cli.Command{
					{Name: "enable", Usage: "enable a notification switch", Action: settingsEnable,
						ArgsUsage: "<all|news|schedule|before-start|at-start|before-end|at-end>"},
					{Name: "disable", Usage: "disable a notification switch", Action: settingsDisable,
						ArgsUsage: "<all|news|schedule|before-start|at-start|before-end|at-end>"},
				},
			},
			{
				Name:   "sync",
				Usage:  "refresh every resource class now",
				Action: syncCmd,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "group, g", Usage: "also refresh this group's schedule"},
				},
			},
			{
				Name:   "clear-cache",
				Usage:  "purge cached data (settings and news anchor survive)",
				Action: clearCache,
			},
			{
				Name:   "daemon",
				Usage:  "run the sync daemon in the foreground",
				Action: daemonCmd,
			},
		},
	}
	return app.Run(args)
}
