package cli

import (
	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/replcheck/internal/cluster"
	"github.com/st3v3nmw/replcheck/internal/fixture"
	"github.com/st3v3nmw/replcheck/internal/session"
)

// RunFlags are the flags of the run command.
func RunFlags() []commands.Flag {
	return []commands.Flag{
		verboseFlag(),
		&commands.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to the config file"},
		&commands.StringSliceFlag{Name: "endpoint", Aliases: []string{"e"}, Usage: "Base address of a running node, in schedule order (repeat per node)"},
		&commands.StringFlag{Name: "mode", Usage: "Cluster mode: external, embedded or forked"},
		&commands.IntFlag{Name: "nodes", Usage: "Number of reference nodes to start"},
		&commands.StringFlag{Name: "handler-path", Usage: "Path of the session handler on every node"},
		&commands.IntFlag{Name: "rounds", Usage: "Number of rounds"},
		&commands.IntFlag{Name: "burst", Usage: "Consecutive requests per node per round"},
		&commands.DurationFlag{Name: "grace", Usage: "Pause after each node's burst to let replication settle (0 disables)"},
		&commands.DurationFlag{Name: "timeout", Usage: "Per-request transport timeout"},
		&commands.BoolFlag{Name: "no-cookies", Usage: "Do not carry the session cookie between requests"},
		&commands.StringFlag{Name: "server-command", Usage: "Command that starts one node in forked mode"},
		&commands.StringFlag{Name: "store", Usage: "Shared store of the reference nodes: memory, sqlite or redis"},
		&commands.StringFlag{Name: "store-dsn", Usage: "Database file (sqlite) or redis:// URL (redis)"},
		adminUserFlag(),
		adminPasswordFlag(),
	}
}

// ServeFlags are the flags of the serve command. Forked runs start nodes
// with them.
func ServeFlags() []commands.Flag {
	return []commands.Flag{
		verboseFlag(),
		&commands.StringFlag{Name: "node", Value: "node", Usage: "Node name"},
		&commands.IntFlag{Name: "port", Value: 8080, Usage: "Port of the first node"},
		&commands.IntFlag{Name: "nodes", Value: 1, Usage: "Nodes to run on consecutive ports"},
		&commands.StringFlag{Name: "handler-path", Value: session.DefaultHandlerPath, Usage: "Path of the session handler"},
		&commands.StringFlag{Name: "store", Value: cluster.DriverMemory, Usage: "Session store: memory, sqlite or redis"},
		&commands.StringFlag{Name: "store-dsn", Usage: "Database file (sqlite) or redis:// URL (redis)"},
		adminUserFlag(),
		adminPasswordFlag(),
	}
}

func verboseFlag() commands.Flag {
	return &commands.BoolFlag{
		Name:    "verbose",
		Usage:   "Log every request and response",
		Aliases: []string{"v"},
		Value:   false,
	}
}

func adminUserFlag() commands.Flag {
	return &commands.StringFlag{
		Name:    "admin-user",
		Usage:   "Administrative user of the cluster nodes",
		Sources: commands.EnvVars(fixture.EnvAdminUser),
	}
}

func adminPasswordFlag() commands.Flag {
	return &commands.StringFlag{
		Name:    "admin-password",
		Usage:   "Administrative password of the cluster nodes",
		Sources: commands.EnvVars(fixture.EnvAdminPassword),
	}
}
