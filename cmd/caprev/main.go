package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"caprev/internal/api"
	"caprev/internal/app"
	"caprev/internal/blob"
	"caprev/internal/config"
)

// envPassphrase supplies the key passphrase for non-interactive runs.
const envPassphrase = "CAPREV_PASSPHRASE"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file after loading the env file next to it,
// then applies environment overrides.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	if err := config.LoadEnvFile(defaults["env_file"]); err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp builds a CaprevApp for one command, runs fn and closes the app.
// operation names the command in the log (e.g. "ingest", "serve").
func withApp(ctx context.Context, operation string, fn func(*app.CaprevApp) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var passphrase string
	if cfg.Encryption.Enabled {
		if passphrase, err = readPassphrase("Encryption passphrase: "); err != nil {
			return err
		}
	}

	a, err := app.NewCaprevApp(ctx, cfg, app.Options{Operation: operation, Passphrase: passphrase})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	runErr := fn(a)
	if runErr != nil {
		a.Logger().Error("command failed", "error", runErr)
		a.Fail()
	}
	if err := a.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func readPassphrase(prompt string) (string, error) {
	if v := os.Getenv(envPassphrase); v != "" {
		return v, nil
	}
	return readPassword(prompt)
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for a password: stdin is not a terminal (set %s)", envPassphrase)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func readNewPassword(prompt string) (string, error) {
	pw, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	confirm, err := readPassword("Confirm: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

func newSessionSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "caprev",
	Short:        "Caption and video review tool",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg := config.NewConfig(defaults["base_dir"])

		password, err := readNewPassword("Admin password: ")
		if err != nil {
			return err
		}
		if cfg.Server.AdminPasswordHash, err = api.HashPassword(password); err != nil {
			return err
		}
		if cfg.Server.SessionSecret, err = newSessionSecret(); err != nil {
			return err
		}

		if encrypt {
			passphrase, err := readNewPassword("Encryption passphrase: ")
			if err != nil {
				return err
			}
			keys := blob.AgeKeys{PublicKeyPath: cfg.Encryption.PublicKeyPath, PrivateKeyPath: cfg.Encryption.PrivateKeyPath}
			if keys.IsConfigured() {
				return fmt.Errorf("encryption keys already exist at %s", cfg.Encryption.PublicKeyPath)
			}
			if err := keys.Setup(passphrase); err != nil {
				return fmt.Errorf("setting up encryption keys: %w", err)
			}
			cfg.Encryption.Enabled = true
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Admin:    %s\n", cfg.Server.AdminUsername)
		if encrypt {
			fmt.Printf("Keys:     %s\n", cfg.Encryption.PublicKeyPath)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Data Dir:   %s\n", cfg.Store.DataDir)
		fmt.Printf("Blob Store: %s\n", cfg.Blob.Type)
		fmt.Printf("Encrypted:  %t\n", cfg.Encryption.Enabled)
		fmt.Printf("Thumbnails: %t (%s)\n", cfg.Thumbnail.Enabled, cfg.Thumbnail.FFmpegPath)
		fmt.Printf("Server:     :%d (%s)\n", cfg.Server.Port, cfg.Server.Env)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), "serve", func(a *app.CaprevApp) error {
			cfg := a.Config()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}

			auth, err := api.NewAuthenticator(cfg.Server)
			if err != nil {
				return err
			}
			requestWindow, uploadWindow, err := cfg.Server.LimitWindows()
			if err != nil {
				return err
			}
			srv := api.NewServer(a.Service(), a.Blobs(), auth, api.Options{
				MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
				Subtitle:       a.SubtitleOptions(),
				RequestLimit:   api.RateLimit{Requests: cfg.Server.RateLimitRequests, Window: requestWindow},
				UploadLimit:    api.RateLimit{Requests: cfg.Server.UploadLimitRequests, Window: uploadWindow},
			}, a.ReviewLogger())

			return srv.ListenAndServe(cmd.Context(), ":"+strconv.Itoa(cfg.Server.Port))
		})
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest PATH...",
	Short: "Ingest caption and video files or directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		recursive, _ := cmd.Flags().GetBool("recursive")
		var folderID *string
		if folder != "" {
			folderID = &folder
		}

		return withApp(cmd.Context(), "ingest", func(a *app.CaprevApp) error {
			report, err := a.IngestFiles(cmd.Context(), args, folderID, recursive)
			if report == nil {
				return err
			}

			for _, c := range report.Created {
				video := ""
				if c.HasVideo {
					video = "  [video]"
				}
				fmt.Printf("created  %s  %s%s\n", c.ID, c.Name, video)
			}
			for _, s := range report.Stacked {
				fmt.Printf("stacked  %s  %s  %s\n", s.AssetID, s.VersionTag, s.File)
			}
			for _, w := range report.Warnings {
				fmt.Printf("warning  %s: %s\n", w.File, w.Message)
			}
			for _, e := range report.Errors {
				fmt.Printf("error    %s: %s\n", e.File, e.Error)
			}
			for _, f := range report.Abandoned {
				fmt.Printf("skipped  %s\n", f)
			}
			return err
		})
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export an asset's captions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		return withApp(cmd.Context(), "export", func(a *app.CaprevApp) error {
			path, err := a.ExportFile(cmd.Context(), args[0], format, out)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %s\n", path)
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		rootOnly, _ := cmd.Flags().GetBool("root")
		var folderID *string
		if folder != "" {
			folderID = &folder
		}

		return withApp(cmd.Context(), "list", func(a *app.CaprevApp) error {
			assets, err := a.Service().ListAssets(cmd.Context(), folderID)
			if err != nil {
				return err
			}
			if len(assets) == 0 {
				fmt.Println("No assets.")
				return nil
			}

			for _, s := range assets {
				if rootOnly && s.FolderID != nil {
					continue
				}
				flags := ""
				if s.HasVideo {
					flags += "V"
				} else {
					flags += " "
				}
				if s.Completed {
					flags += "C"
				} else {
					flags += " "
				}
				version := s.CurrentVersion
				if version == "" {
					version = "-"
				}
				fmt.Printf("%s %s  %-5s %4d rows  %s\n", flags, s.ID, version, s.RowCount, s.Name)
			}
			return nil
		})
	},
}

// folder command
var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), "folder-list", func(a *app.CaprevApp) error {
			folders, err := a.Service().ListFolders(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range folders {
				fmt.Printf("%s  %s\n", f.ID, f.Name)
			}
			return nil
		})
	},
}

var folderCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), "folder-create", func(a *app.CaprevApp) error {
			f, err := a.Service().CreateFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created folder %s\n", f.ID)
			return nil
		})
	},
}

// thumbnails command
var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "Generate missing thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), "thumbnails", func(a *app.CaprevApp) error {
			report, err := a.Service().RegenerateThumbnails(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d thumbnails. Skipped: %d, Failed: %d\n", report.Generated, report.Skipped, report.Failed)
			return nil
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt blobs at rest with a new age key pair")
	configCmd.AddCommand(configListCmd)

	// folder subcommands
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderCreateCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("folder", "", "Folder ID to ingest into")
	ingestCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "csv", "Export format: csv or srt")
	exportCmd.Flags().StringP("out", "o", ".", "Output directory")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("folder", "", "Only list assets in this folder")
	listCmd.Flags().Bool("root", false, "Only list assets outside any folder")
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(thumbnailsCmd)
}
