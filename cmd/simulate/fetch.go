package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/drive"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/storage"
)

func fetchCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download the four input feeds from Google Drive or object storage",
		Flags: append(inputFlags(cfg),
			&cli.StringFlag{Name: "source", Usage: "drive or storage", Value: "drive"},
			&cli.StringFlag{Name: "folder-id", Usage: "Drive folder holding the feeds", Value: cfg.Drive.FolderID, EnvVars: []string{"DRIVE_FOLDER_ID"}},
			&cli.StringFlag{Name: "prefix", Usage: "Object key prefix holding the feeds", Value: "inputs/"},
		),
		Action: func(c *cli.Context) error {
			applyInputFlags(c, cfg)
			names := service.InputNames(cfg.App)

			var (
				paths []string
				err   error
			)
			switch c.String("source") {
			case "drive":
				if c.String("folder-id") == "" {
					return fmt.Errorf("--folder-id or DRIVE_FOLDER_ID is required")
				}
				srv, serr := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
				if serr != nil {
					return serr
				}
				paths, err = drive.NewDownloader(srv).DownloadInputs(c.Context, c.String("folder-id"), cfg.App.InputDir, names)
			case "storage":
				store, serr := storage.NewMinioClient(cfg.Storage)
				if serr != nil {
					return serr
				}
				paths, err = service.FetchInputs(c.Context, store, c.String("prefix"), cfg.App.InputDir, names)
			default:
				return fmt.Errorf("unknown source %q", c.String("source"))
			}
			if err != nil {
				return err
			}

			for _, p := range paths {
				fmt.Fprintf(c.App.Writer, "fetched %s\n", p)
			}
			return nil
		},
	}
}
