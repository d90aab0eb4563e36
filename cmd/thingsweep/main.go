package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "thingsweep",
		Short: "Crawl a design-sharing platform's API into a local SQLite database",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(sweepCmd())
	root.AddCommand(initDBCmd())
	root.AddCommand(genIDsCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(serveCmd())

	return root
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one resumable sweep over the traversal sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep()
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database and all tables if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB()
		},
	}
}

func genIDsCmd() *cobra.Command {
	var max int64

	cmd := &cobra.Command{
		Use:   "genids",
		Short: "Generate and persist the shuffled id traversal sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenIDs(max)
		},
	}

	cmd.Flags().Int64Var(&max, "max", 0, "highest id in the universe (default: from config)")
	return cmd
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [statement]",
		Short: "Run a read-only SQL statement against the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(args[0])
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only inspection HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
