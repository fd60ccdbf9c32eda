package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moweilong/univadmin/pkg/apiclient"
	"github.com/moweilong/univadmin/pkg/univ"
)

// concurrent requests of get
const maxInFlight = 4

func (a *app) lookup(ctx context.Context, name string) (univ.Handle, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}
	h, ok := svc.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q, one of: %s", name, strings.Join(svc.Names(), ", "))
	}
	return h, nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids[i] = id
	}
	return ids, nil
}

// readPayload reads a json payload from file, "-" reads stdin.
func readPayload(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" {
		return nil, fmt.Errorf("a payload file is required, use -f file.json or -f - for stdin")
	}
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

func (a *app) newResourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources that can be managed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow(header("name", "path")...)
			for _, name := range svc.Names() {
				h, _ := svc.Lookup(name)
				table.AddRow(name, h.Path())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
			return err
		},
	}
}

func (a *app) newListCommand() *cobra.Command {
	var (
		filters []string
		search  string
	)

	cmd := &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List the items of a resource, following every page",
		Example: color.HiBlackString(`  univadmin list students --filter niveau=L2
  univadmin list etudiants --search ndiaye --format json`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			query := url.Values{}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid filter %q, expected field=value", f)
				}
				query.Add(k, v)
			}
			if search != "" {
				query.Set("search", search)
			}

			items, err := h.ListAny(cmd.Context(), query)
			if err != nil {
				return err
			}
			return a.printList(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter as field=value, repeatable.")
	cmd.Flags().StringVar(&search, "search", "", "Full text search.")
	return cmd
}

func (a *app) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get RESOURCE ID...",
		Short: "Show items by id, fetched concurrently",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}

			items := make([]any, len(ids))
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(maxInFlight)
			for i, id := range ids {
				eg.Go(func() error {
					item, err := h.GetAny(ctx, id)
					if err != nil {
						return err
					}
					items[i] = item
					return nil
				})
			}
			if err = eg.Wait(); err != nil {
				return err
			}

			if len(items) == 1 {
				return a.printObject(cmd.OutOrStdout(), items[0])
			}
			return a.printList(cmd.OutOrStdout(), items)
		},
	}
}

func (a *app) newCreateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "create RESOURCE -f FILE",
		Short:   "Create an item from a json payload",
		Example: color.HiBlackString(`  univadmin create salles -f salle.json`),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			item, err := h.CreateJSON(cmd.Context(), data)
			if err != nil {
				return err
			}
			return a.printObject(cmd.OutOrStdout(), item)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Json payload file, - for stdin.")
	return cmd
}

func (a *app) newUpdateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update RESOURCE ID -f FILE",
		Short: "Replace an item with a json payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			data, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			item, err := h.UpdateJSON(cmd.Context(), ids[0], data)
			if err != nil {
				return err
			}
			return a.printObject(cmd.OutOrStdout(), item)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Json payload file, - for stdin.")
	return cmd
}

func (a *app) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete RESOURCE ID...",
		Short: "Delete items by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}

			// sequential, a failure leaves the following ids alone
			for _, id := range ids {
				if err = h.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d\n", color.GreenString("deleted"), h.Name(), id)
			}
			return nil
		},
	}
}

// saveFile writes a binary response to output, or to the announced file name in the working directory.
func saveFile(cmd *cobra.Command, resp *apiclient.Response, output, fallback string) error {
	if output == "" {
		output = filepath.Base(resp.Filename())
		if output == "." || output == "/" || output == "" {
			output = fallback
		}
	}
	if output == "-" {
		_, err := cmd.OutOrStdout().Write(resp.Body)
		return err
	}
	if err := os.WriteFile(output, resp.Body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%d bytes)\n", color.GreenString("saved"), output, len(resp.Body))
	return nil
}

func (a *app) newDownloadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download DOCUMENT_ID",
		Short: "Download the file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.Documents.Download(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			return saveFile(cmd, resp, output, fmt.Sprintf("document-%d", ids[0]))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout. Defaults to the name sent by the server.")
	return cmd
}

func (a *app) newGenerateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "generate TEMPLATE_ID STUDENT_ID",
		Short:   "Render a document template for a student",
		Example: color.HiBlackString(`  univadmin generate 1 42 -o attestation.pdf`),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.Templates.Generate(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			return saveFile(cmd, resp, output, fmt.Sprintf("template-%d-%d", ids[0], ids[1]))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout. Defaults to the name sent by the server.")
	return cmd
}
