// modelctl runs a text or image generation from the terminal and optionally
// saves the resulting model locally.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sketch3d/internal/domain"
	"sketch3d/internal/generation"
	"sketch3d/internal/infra"
	"sketch3d/internal/providers/modelslab"
	"sketch3d/internal/storage"
)

// Version metadata injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit signals a non-zero exit after the command already reported the error.
var errExit = errors.New("exit")

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "modelctl: %v\n", err)
		}
		return 1
	}
	return 0
}

type globalFlags struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
	outDir       string
	verbose      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cfg, _ := infra.LoadConfig()
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Generate 3D models with ModelsLab from the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.baseURL, "base-url", cfg.ModelsLabBaseURL, "ModelsLab API base URL")
	pf.StringVar(&flags.apiKey, "api-key", cfg.ModelsLabAPIKey, "ModelsLab API key (defaults to MODELSLAB_API_KEY)")
	pf.DurationVar(&flags.pollInterval, "poll-interval", 0, "Override the status poll interval (e.g. 5s)")
	pf.IntVar(&flags.maxAttempts, "max-attempts", 0, "Override the number of status polls")
	pf.StringVar(&flags.outDir, "out-dir", "", "Download the model into this directory")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log every remote call and poll to stderr")

	root.AddCommand(
		newTextCmd(cfg, flags, stdout, stderr),
		newImageCmd(cfg, flags, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

func newTextCmd(cfg *infra.Config, flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "text <prompt>",
		Short: "Generate a model from a text prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return generate(cmd.Context(), cfg, flags, stdout, stderr, domain.GenerationRequest{Kind: domain.RequestKindText, Prompt: prompt})
		},
	}
}

func newImageCmd(cfg *infra.Config, flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "image <file|data-url>",
		Short: "Generate a model from an image file or data URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := imageDataURL(args[0])
			if err != nil {
				return err
			}
			return generate(cmd.Context(), cfg, flags, stdout, stderr, domain.GenerationRequest{Kind: domain.RequestKindImage, ImageData: data})
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "modelctl %s (%s)\n", version, commit)
		},
	}
}

// imageDataURL returns arg unchanged when it already is a data URL, otherwise
// reads the file and encodes it with its sniffed content type.
func imageDataURL(arg string) (string, error) {
	if strings.HasPrefix(arg, "data:") {
		return arg, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("read image: %s is empty", arg)
	}
	contentType := http.DetectContentType(raw)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("read image: %s is %s, not an image", arg, contentType)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func generate(ctx context.Context, cfg *infra.Config, flags *globalFlags, stdout, stderr io.Writer, req domain.GenerationRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zerolog.Nop()
	if flags.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}

	client := modelslab.NewClient(modelslab.Options{
		APIKey:         flags.apiKey,
		BaseURL:        flags.baseURL,
		RequestTimeout: cfg.ModelsLabRequestTimeout,
		Logger:         &logger,
	})
	if !client.HasCredentials() {
		fmt.Fprintln(stderr, "modelctl: warning: no API key configured")
	}

	text := generation.PollPolicy{Interval: cfg.TextPollInterval, MaxAttempts: cfg.TextPollMaxAttempts}
	image := generation.PollPolicy{Interval: cfg.ImagePollInterval, MaxAttempts: cfg.ImagePollMaxAttempts}
	if flags.pollInterval > 0 {
		text.Interval, image.Interval = flags.pollInterval, flags.pollInterval
	}
	if flags.maxAttempts > 0 {
		text.MaxAttempts, image.MaxAttempts = flags.maxAttempts, flags.maxAttempts
	}
	orchestrator := generation.New(generation.Options{
		Remote:      client,
		Logger:      &logger,
		TextPolicy:  text,
		ImagePolicy: image,
	})

	result, err := orchestrator.Submit(ctx, req)
	if err != nil {
		reportError(stderr, err)
		return errExit
	}
	fmt.Fprintln(stdout, result.ModelURL)

	if flags.outDir == "" {
		return nil
	}
	store, err := storage.NewFileStore(flags.outDir)
	if err != nil {
		return err
	}
	data, contentType, err := client.Download(ctx, result.ModelURL)
	if err != nil {
		return err
	}
	path, err := store.SaveModel(ctx, data, result.ModelURL, contentType)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s (%d bytes)\n", path, len(data))
	return nil
}

func reportError(stderr io.Writer, err error) {
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		fmt.Fprintf(stderr, "modelctl: %v\n", err)
		return
	}
	fmt.Fprintf(stderr, "modelctl: %s (%s)\n", genErr.Error(), genErr.Kind)
	if len(genErr.Raw) > 0 {
		var pretty strings.Builder
		enc := json.NewEncoder(&pretty)
		enc.SetIndent("", "  ")
		var v any
		if json.Unmarshal(genErr.Raw, &v) == nil && enc.Encode(v) == nil {
			fmt.Fprintf(stderr, "last response:\n%s", pretty.String())
		}
	}
}
