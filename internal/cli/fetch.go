package cli

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wanmail/seleniumhelpers/internal/download"
)

func newFetchCmd() *cobra.Command {
	var (
		dir      string
		latest   bool
		browsers bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download WebDriver binaries",
		Long:  `Downloads chromedriver and geckodriver, and optionally Chromium and Firefox, into the directory searched for drivers missing from PATH.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.VendorDir
			}

			files, err := download.Plan(cmd.Context(), download.Options{
				Browsers: browsers,
				Latest:   latest,
			})
			if err != nil {
				return err
			}
			for _, f := range files {
				log.Debug().Str("name", f.Name).Str("url", f.URL()).Msg("planned download")
			}

			log.Info().Int("files", len(files)).Str("dir", dir).Msg("downloading")
			if err := download.DownloadAll(cmd.Context(), http.DefaultClient, dir, files); err != nil {
				return err
			}
			log.Info().Str("dir", dir).Msg("done")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Destination directory (default: SELENIUM_VENDOR_DIR)")
	cmd.Flags().BoolVar(&latest, "latest", false, "Download the latest versions instead of the pinned ones")
	cmd.Flags().BoolVar(&browsers, "browsers", false, "Also download Chromium and Firefox")
	return cmd
}
