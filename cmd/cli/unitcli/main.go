package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	coreControl "github.com/core-tools/hsu-core/pkg/control"
	coreDomain "github.com/core-tools/hsu-core/pkg/domain"
	coreLogging "github.com/core-tools/hsu-core/pkg/logging"

	"github.com/core-tools/hsu-compose/pkg/control"
	"github.com/core-tools/hsu-compose/pkg/domain"
	"github.com/core-tools/hsu-compose/pkg/errors"
	"github.com/core-tools/hsu-compose/pkg/logging"
	"github.com/core-tools/hsu-compose/pkg/units"

	"github.com/spf13/cobra"
)

var (
	serverPath string
	attachPort int
	unitID     string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:           "unitcli",
		Short:         "Controls the compose units of a running gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Shows the docker engine, image and unit states",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	selectCmd = &cobra.Command{
		Use:   "select <unit>",
		Short: "Selects a unit, which restarts the status refresh",
		Args:  cobra.ExactArgs(1),
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			return contract.Select(ctx, args[0])
		}),
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Refreshes the status of the selected unit",
		Args:  cobra.NoArgs,
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			return contract.Refresh(ctx)
		}),
	}
	execCmd = &cobra.Command{
		Use:   "exec <command...>",
		Short: "Runs a command inside the unit container",
		Args:  cobra.MinimumNArgs(1),
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			output, err := contract.Exec(ctx, unitID, strings.Join(args, " "))
			fmt.Print(output)
			return err
		}),
	}
	logsCmd = &cobra.Command{
		Use:   "logs <stream>",
		Short: "Prints a unit log: compose-stdout, compose-stderr, tail or exec-io",
		Args:  cobra.ExactArgs(1),
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			text, err := contract.Logs(ctx, unitID, args[0])
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		}),
	}
	modeCmd = &cobra.Command{
		Use:   "mode <dev|prod>",
		Short: "Switches the unit between its prod and dev services",
		Args:  cobra.ExactArgs(1),
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			return contract.SetMode(ctx, unitID, args[0])
		}),
	}
)

// unitOperation builds a command for a unit operation taking an optional unit id
func unitOperation(use, short string, call func(domain.Contract, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [unit]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
			id := unitID
			if len(args) == 1 {
				id = args[0]
			}
			return call(contract, ctx, id)
		}),
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverPath, "server", "", "path to the server executable")
	rootCmd.PersistentFlags().IntVar(&attachPort, "port", 0, "port to attach to the server")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log connection details")

	for _, cmd := range []*cobra.Command{execCmd, logsCmd, modeCmd} {
		cmd.Flags().StringVarP(&unitID, "unit", "u", "", "unit id, defaults to the selected unit")
	}

	rootCmd.AddCommand(
		statusCmd,
		selectCmd,
		refreshCmd,
		unitOperation("start", "Starts the unit service", domain.Contract.Start),
		unitOperation("stop", "Stops the unit service", domain.Contract.Stop),
		unitOperation("restart", "Restarts the unit service", domain.Contract.Restart),
		unitOperation("down", "Takes the whole compose project down", domain.Contract.Down),
		unitOperation("rebuild", "Wipes and rebuilds the unit without cache", domain.Contract.Rebuild),
		unitOperation("remove", "Force removes the unit container", domain.Contract.Remove),
		execCmd,
		logsCmd,
		modeCmd,
	)
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-client , ", module)
}

// withContract connects to the gateway and runs call against it
func withContract(call func(ctx context.Context, contract domain.Contract, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if serverPath == "" && attachPort == 0 {
			return errors.NewValidationError("server path or attach port is required", nil)
		}

		logger := sprintfLogging.NewStdSprintfLogger()
		funcs := logging.LogFuncs{
			Debugf: func(string, ...interface{}) {},
			Infof:  func(string, ...interface{}) {},
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		}
		if verbose {
			funcs.Debugf = logger.Debugf
			funcs.Infof = logger.Infof
		}

		coreLogger := coreLogging.NewLogger(
			logPrefix("hsu-core"), coreLogging.LogFuncs{
				Debugf: coreLogging.LogFunc(funcs.Debugf),
				Infof:  coreLogging.LogFunc(funcs.Infof),
				Warnf:  coreLogging.LogFunc(funcs.Warnf),
				Errorf: coreLogging.LogFunc(funcs.Errorf),
			})
		composeLogger := logging.NewLogger(logPrefix("hsu-compose"), funcs)

		coreConnectionOptions := coreControl.ConnectionOptions{
			ServerPath: serverPath,
			AttachPort: attachPort,
		}
		coreConnection, err := coreControl.NewConnection(coreConnectionOptions, coreLogger)
		if err != nil {
			return errors.NewNetworkError("failed to create core connection", err)
		}

		coreClientGateway := coreControl.NewGRPCClientGateway(coreConnection.GRPC(), coreLogger)
		unitClientGateway := control.NewGRPCClientGateway(coreConnection.GRPC(), composeLogger)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		retryPingOptions := coreDomain.RetryPingOptions{
			RetryAttempts: 10,
			RetryInterval: 1 * time.Second,
		}
		err = coreDomain.RetryPing(ctx, coreClientGateway, retryPingOptions, coreLogger)
		if err != nil {
			return errors.NewNetworkError("failed to ping gateway", err)
		}

		return call(ctx, unitClientGateway, args)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withContract(func(ctx context.Context, contract domain.Contract, args []string) error {
		status, err := contract.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	})(cmd, args)
}

func printStatus(status domain.StatusInfo) {
	fmt.Printf("Engine: %s\nImage:  %s\nEpoch:  %d\n", status.Engine, status.Image, status.Epoch)
	if status.TailActive {
		fmt.Printf("Tailing: %s\n", status.Selected)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tUNIT\tNAME\tSTATUS\tMODE\tLAST ERROR")
	for _, unit := range status.Units {
		marker := ""
		if unit.Selected {
			marker = "*"
		}
		if units.Status(unit.Status).IsTransitional() {
			marker += "~"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", marker, unit.ID, unit.DisplayName, unit.StatusText, unit.Mode, unit.LastError)
	}
	w.Flush()
	fmt.Println("\n* selected, ~ operation in progress")
}

// exitCode maps remote error types to the process exit status
func exitCode(err error) int {
	switch {
	case errors.IsNetworkError(err), errors.IsTimeoutError(err):
		return 2
	case errors.IsCancelledError(err):
		return 130
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
