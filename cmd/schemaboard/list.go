package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/config"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/listing"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/localstore"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/logging"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/remotestore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const listTimeLayout = "2006-01-02 15:04"

func newListCommand() *cobra.Command {
	var filterExpression string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diagrams from the local and remote stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), filterExpression)
		},
	}
	cmd.Flags().StringVar(&filterExpression, "filter", "", `Filter expression, e.g. database == "postgresql" && tables > 3`)
	return cmd
}

func runList(ctx context.Context, out io.Writer, filterExpression string) error {
	filter, err := listing.CompileFilter(filterExpression)
	if err != nil {
		return err
	}

	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	local, err := localstore.Open(appConfig.LocalPath)
	if err != nil {
		return err
	}
	defer local.Close()

	remote, err := newRemoteClient(appConfig, logger)
	if err != nil {
		return err
	}

	service, err := listing.NewService(listing.ServiceConfig{
		Local:  local,
		Remote: remote,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	entries, err := service.Entries(ctx, filter)
	if err != nil {
		return err
	}
	return printEntries(out, entries)
}

func newRemoteClient(appConfig config.AppConfig, logger *zap.Logger) (*remotestore.Client, error) {
	retry := remotestore.DefaultRetryPolicy()
	retry.Attempts = appConfig.RemoteRetries
	retry.InitialDelay = appConfig.RemoteRetryDelay
	return remotestore.NewClient(remotestore.ClientConfig{
		BaseURL: appConfig.RemoteURL,
		Timeout: appConfig.RemoteTimeout,
		Retry:   retry,
		Logger:  logger,
	})
}

func printEntries(out io.Writer, entries []listing.Entry) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tDATABASE\tTABLES\tSIZE\tMODIFIED\tSOURCE")
	for _, entry := range entries {
		source := "local"
		if entry.RemoteOnly {
			source = "remote"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			entry.ID,
			entry.Name,
			entry.DialectName,
			entry.Tables,
			entry.SizeLabel,
			entry.LastModified.Local().Format(listTimeLayout),
			source,
		)
	}
	return writer.Flush()
}
