package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/config"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/gist"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/localstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errMissingTemplateFile = errors.New("template file is required")

type templateImportOptions struct {
	file    string
	id      string
	builtin bool
}

func newTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage diagram templates in the local store",
	}
	cmd.AddCommand(newTemplateImportCommand(), newTemplateListCommand())
	return cmd
}

func newTemplateImportCommand() *cobra.Command {
	var options templateImportOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a diagram document as a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateImport(cmd.Context(), cmd.OutOrStdout(), options)
		},
	}
	cmd.Flags().StringVar(&options.file, "file", "", "Path to a diagram document in share format")
	cmd.Flags().StringVar(&options.id, "id", "", "Template identifier; generated when empty")
	cmd.Flags().BoolVar(&options.builtin, "builtin", false, "Mark the template as built-in")
	return cmd
}

func newTemplateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplateList(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func openLocalStore() (*localstore.Store, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return localstore.Open(appConfig.LocalPath)
}

func runTemplateImport(ctx context.Context, out io.Writer, options templateImportOptions) error {
	path := strings.TrimSpace(options.file)
	if path == "" {
		return errMissingTemplateFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template file: %w", err)
	}
	document, err := gist.ParseDocument(string(raw))
	if err != nil {
		return err
	}

	id := strings.TrimSpace(options.id)
	if id == "" {
		if id, err = diagrams.NewUUIDProvider().NewID(); err != nil {
			return err
		}
	}

	local, err := openLocalStore()
	if err != nil {
		return err
	}
	defer local.Close()

	diagram := document.Diagram(id, "")
	diagram.LastModified = time.Now()
	template := diagrams.TemplateFromDiagram(id, !options.builtin, diagram)
	if err := local.PutTemplate(ctx, template); err != nil {
		return err
	}
	fmt.Fprintf(out, "template: %s\n", id)
	fmt.Fprintf(out, "session: t %s\n", id)
	return nil
}

func runTemplateList(ctx context.Context, out io.Writer) error {
	local, err := openLocalStore()
	if err != nil {
		return err
	}
	defer local.Close()

	templates, err := local.ListTemplates(ctx)
	if err != nil {
		return err
	}
	return printTemplates(out, templates)
}

func printTemplates(out io.Writer, templates []diagrams.Template) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tDATABASE\tTABLES\tSOURCE")
	for _, template := range templates {
		source := "builtin"
		if template.Custom {
			source = "custom"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n",
			template.ID,
			template.Title,
			diagrams.CapabilitiesOf(template.Database).Name,
			len(template.Tables),
			source,
		)
	}
	return writer.Flush()
}
