package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	seleniumhelpers "github.com/wanmail/seleniumhelpers"
)

func newBrowsersCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "browsers",
		Short: "List the browsers SELENIUM_BROWSER can name",
		Long:  `Lists local browsers with the driver binary that would be used, or the remote capability registry with --remote.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout())
			if remote {
				table.Header("Name", "Browser Name", "Platform")
				for _, name := range seleniumhelpers.RemoteBrowserNames() {
					caps, err := seleniumhelpers.RemoteCapabilities(name)
					if err != nil {
						return err
					}
					if err := table.Append([]string{name, fmt.Sprint(caps["browserName"]), fmt.Sprint(caps["platform"])}); err != nil {
						return err
					}
				}
				return table.Render()
			}

			table.Header("Name", "Driver", "Path")
			for _, name := range seleniumhelpers.BrowserNames() {
				b, err := seleniumhelpers.ParseBrowser(name)
				if err != nil {
					return err
				}
				driver, path := b.DriverBinary(), "-"
				if driver == "" {
					driver, path = "-", seleniumhelpers.GhostDriverURL
				} else if p, err := seleniumhelpers.FindDriver(b, cfg); err == nil {
					path = p
				} else {
					path = "not found"
				}
				if name == cfg.Browser && !cfg.UseRC {
					name += " (selected)"
				}
				if err := table.Append([]string{name, driver, path}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List the capability registry used with SELENIUM_USE_RC")
	return cmd
}

// newTable returns a borderless, left-aligned table.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
				Lines:      tw.LinesNone,
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)
}
