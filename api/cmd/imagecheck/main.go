package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"image-check/api/internal/config"
	"image-check/api/internal/dataset"
	"image-check/api/internal/handle"
	"image-check/api/internal/httpserver"
	"image-check/api/internal/imagecheck"
	"image-check/api/internal/notify"
	"image-check/api/internal/sign"
)

var (
	configFile string

	datasetPath string
	account     string
	ip          string
	notifyChat  bool

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorCyan   = color.New(color.FgCyan)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "imagecheck",
	Short:         "Image moderation API client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checkCmd = &cobra.Command{
	Use:   "check [image files...]",
	Short: "Check a URL dataset and/or local image files",
	Long: `Sends images to the image check API and prints per-image verdicts.

URL images come from --dataset, a JSON array of {"url": "..."} objects.
Local files are embedded as base64. Inputs are split into batches of at most
100 URL images or 10MB of base64 data.`,
	RunE: runCheck,
}

var signCmd = &cobra.Command{
	Use:   "sign key=value...",
	Short: "Print the signature for a parameter set",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSign,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /v1/image/check over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (env DUN_* overrides it)")

	checkCmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "JSON dataset of {\"url\": ...} entries")
	checkCmd.Flags().StringVar(&account, "account", "", "account hint sent with each batch")
	checkCmd.Flags().StringVar(&ip, "ip", "", "client ip hint sent with each batch")
	checkCmd.Flags().BoolVar(&notifyChat, "notify", false, "report flagged images to the configured Telegram chat")

	rootCmd.AddCommand(checkCmd, signCmd, serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*imagecheck.Client, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	return imagecheck.New(cfg.Credentials(), opts...)
}

func newReporter(cfg *config.Config) (*notify.Telegram, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("telegram_token is not configured")
	}
	return notify.NewFromToken(cfg.TelegramToken, cfg.TelegramChatID)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	var reporter *notify.Telegram
	if notifyChat {
		if reporter, err = newReporter(cfg); err != nil {
			return err
		}
	}

	var images []imagecheck.ImageDescriptor
	if datasetPath != "" {
		urls, err := dataset.LoadURLs(datasetPath)
		if err != nil {
			return err
		}
		images = append(images, urls...)
	}
	if len(args) > 0 {
		files, err := dataset.LoadFiles(args)
		if err != nil {
			return err
		}
		images = append(images, files...)
	}
	if len(images) == 0 {
		return errors.New("nothing to check: pass --dataset and/or image files")
	}
	batches, err := dataset.Split(images)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var failed int
	for i, batch := range batches {
		log.Printf("batch %d/%d: %d images (method=%s)", i+1, len(batches), len(batch), client.Method())
		resp, err := client.CheckImages(ctx, imagecheck.Request{Images: batch, Account: account, IP: ip})
		if err != nil {
			// a failed call aborts only this batch
			colorRed.Fprintf(out, "batch %d: %v\n", i+1, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		s := imagecheck.Summarize(resp)
		printSummary(out, i+1, s)
		if !s.OK {
			failed++
		}
		if reporter != nil {
			if err := reporter.Report(ctx, s); err != nil {
				log.Printf("batch %d: report: %v", i+1, err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(batches))
	}
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return &imagecheck.ConfigError{Field: "secretKey"}
	}
	params, err := parseKV(args)
	if err != nil {
		return err
	}
	method, err := cfg.Method()
	if err != nil {
		return err
	}
	if _, ok := params[sign.FieldSignatureMethod]; ok {
		method = sign.MethodFromParams(params)
	}

	out := cmd.OutOrStdout()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		colorCyan.Fprintf(out, "%s", k)
		fmt.Fprintf(out, "=%s\n", params[k])
	}
	fmt.Fprintf(out, "%s: %s\n", method, sign.Sign(params, cfg.SecretKey, method))
	return nil
}

func parseKV(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad parameter %q, want key=value", a)
		}
		params[k] = v
	}
	return params, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	var h *handle.Handle
	if cfg.TelegramToken != "" {
		reporter, err := newReporter(cfg)
		if err != nil {
			return err
		}
		h = handle.New(client, reporter)
	} else {
		h = handle.New(client, nil)
	}

	addr := "0.0.0.0:" + cfg.Port
	return httpserver.StartHTTP(addr, h)
}
