package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/pdfup/internal/config"
	"github.com/chmdznr/pdfup/internal/controller"
	"github.com/chmdznr/pdfup/internal/db"
	"github.com/chmdznr/pdfup/internal/logging"
	"github.com/chmdznr/pdfup/internal/upload"
	"github.com/chmdznr/pdfup/internal/view"
	"github.com/chmdznr/pdfup/pkg/utils"
	"github.com/chmdznr/pdfup/pkg/version"
)

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	fileFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Path of the PDF file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "mime",
			Usage: "MIME type to use instead of detecting it from the file content",
		},
	}

	return &cli.App{
		Name:                 "pdfup",
		Usage:                "Upload PDF files to a document server",
		Version:              version.Version,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"PDFUP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "Base URL of the server receiving POST /upload",
				EnvVars: []string{"PDFUP_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "target",
				Usage:   "Upload target: http or minio",
				EnvVars: []string{"PDFUP_TARGET"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Diagnostic log level (debug, info, warn, error)",
				EnvVars: []string{"PDFUP_LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up on an upload after this long (0 waits forever)",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "Disable colored output",
				EnvVars: []string{"PDFUP_NO_COLOR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version:    %s\n", version.Version)
					fmt.Printf("Git commit: %s\n", version.GitCommit)
					fmt.Printf("Built:      %s\n", version.BuildTime)
					return nil
				},
			},
			{
				Name:   "check",
				Usage:  "Check whether a file can be uploaded",
				Flags:  fileFlags,
				Action: checkFile,
			},
			{
				Name:   "upload",
				Usage:  "Upload a PDF file",
				Flags:  fileFlags,
				Action: uploadFile,
			},
			{
				Name:   "session",
				Usage:  "Select and upload files interactively",
				Action: runSession,
			},
		},
	}
}

// loadConfig builds the configuration from defaults, the optional config file
// and any global flags that were set explicitly.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("target") {
		cfg.Target = c.String("target")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("no-color") {
		cfg.NoColor = c.Bool("no-color")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newUploader(cfg config.Config, logger logrus.FieldLogger) (upload.Uploader, error) {
	switch cfg.Target {
	case config.TargetMinio:
		return upload.NewMinioUploader(upload.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			Bucket:    cfg.Minio.Bucket,
			Folder:    cfg.Minio.Folder,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Secure:    cfg.Minio.Secure,
		}, logger)
	default:
		return upload.NewHTTPUploader(upload.HTTPConfig{
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout,
		}, logger)
	}
}

// app bundles everything one form session needs.
type app struct {
	log   *logrus.Logger
	store *db.DB
	ctrl  *controller.Controller
}

// setup creates the logger, session store, view and controller.
//
// The caller must call close when done; closing drops the session's
// uploaded-file list.
func setup(c *cli.Context, out io.Writer, noBar bool) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.NoColor)
	if err != nil {
		return nil, err
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %v", err)
	}

	store, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %v", err)
	}
	logger.WithField("session", store.Name()).Debug("session store ready")

	term := view.NewTerminal(out, view.Options{NoColor: cfg.NoColor, NoBar: noBar})
	return &app{
		log:   logger,
		store: store,
		ctrl:  controller.New(term, store, uploader, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close session store")
	}
}

// checkFile runs the file-selection check and prints the file-info line.
//
// It exits with status 1 when the file is not a PDF.
func checkFile(c *cli.Context) error {
	a, err := setup(c, c.App.Writer, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ctrl.SelectFile(c.String("file"), c.String("mime")); err != nil {
		return err
	}
	if !a.ctrl.State().Selected.IsPDF() {
		return cli.Exit("", 1)
	}
	return nil
}

// uploadFile selects the file, submits it and waits for the upload to finish.
//
// Ctrl-C cancels the upload in flight. Any outcome other than a successful
// upload is returned as an error so the process exits non-zero.
func uploadFile(c *cli.Context) error {
	a, err := setup(c, c.App.Writer, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.ctrl.SelectFile(c.String("file"), c.String("mime")); err != nil {
		return err
	}

	outcome, err := a.ctrl.Submit(ctx)
	if err != nil {
		return fmt.Errorf("upload %s: %w", outcome, err)
	}
	return nil
}

// runSession starts the interactive form. The uploaded-file list lives as long
// as the session does.
func runSession(c *cli.Context) error {
	a, err := setup(c, c.App.Writer, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		ctrl: a.ctrl,
		in:   newLineReader(os.Stdin),
		out:  c.App.Writer,
		keys: terminalKeys{},
	}
	if err := s.run(ctx); err != nil {
		return err
	}

	stats, err := a.store.GetStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Session: %d uploaded (%s), %d failed, %d rejected\n",
		stats.UploadedFiles, utils.FormatSize(stats.UploadedSize), stats.FailedFiles, stats.RejectedFiles)
	return nil
}
