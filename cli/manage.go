package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/effects"
	"thaitanloi365/go-face-privacy/models"
	"thaitanloi365/go-face-privacy/server"
)

func serveCmd(e *env) *cobra.Command {
	var (
		o     overrides
		addr  string
		noAge bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the anonymization API over HTTP",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if addr != "" {
				e.cfg.Server.Addr = addr
			}
			ctx := cmd.Context()

			d, err := e.app.NewDetector(ctx, e.cfg.DetectorName(), 0)
			if err != nil {
				return err
			}
			defer d.Close()

			opts := []server.Option{
				server.WithLogger(e.log),
				server.WithMaxUpload(int64(e.cfg.Server.MaxUploadMB) << 20),
				server.WithDefaultEffect(e.cfg.EffectName(), e.cfg.Effect.Intensity),
			}
			if !noAge {
				est, err := e.app.NewEstimator(ctx)
				if err != nil {
					e.log.Warn("Age estimation disabled", "backend", e.cfg.Age.Backend, "error", err)
				} else {
					defer est.Close()
					opts = append(opts, server.WithEstimator(est))
				}
			}
			return server.New(d, opts...).Run(ctx, e.cfg.Server.Addr)
		},
	}

	o.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noAge, "no-age", false, "Do not load the age model")
	return cmd
}

func modelsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the pretrained model cache",
	}
	cmd.AddCommand(modelsListCmd(e))
	cmd.AddCommand(modelsPullCmd(e))
	cmd.AddCommand(modelsPathCmd(e))
	return cmd
}

func modelsListCmd(e *env) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known models and whether they are downloaded",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return outputModels(cmd.OutOrStdout(), e.app.Store().List(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func outputModels(w io.Writer, list []models.Status, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tPRESENT\tSIZE\tDESCRIPTION")
	for _, m := range list {
		size := "-"
		if m.Present {
			size = formatSize(m.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", m.Name, m.Kind, m.Present, size, m.Description)
	}
	return tw.Flush()
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func modelsPullCmd(e *env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "pull [name...]",
		Short: "Download models",
		Long:  "Download the named models, or every detector model when no name is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := e.app.Store()
			names := args
			switch {
			case all:
				names = store.Catalog().Names()
			case len(names) == 0:
				names = store.Catalog().ByKind(models.KindDetector)
			}
			for _, n := range names {
				if _, err := store.Model(n); err != nil {
					return err
				}
			}
			if err := store.Pull(cmd.Context(), names...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ready in %s\n", strings.Join(names, ", "), store.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Download every model, including age models")
	return cmd
}

func modelsPathCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "path <name>",
		Short: "Print the local files of a model",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := e.app.Store().Paths(args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func effectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effects",
		Short: "List the anonymization effects and their webcam keys",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, name := range effects.Available() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", i+1, name)
			}
			return nil
		},
	}
}

func infoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the effective configuration and available detectors",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			path := e.configPath
			if path == "" {
				path = config.DefaultPath()
				if !fileExists(path) {
					path += " (absent, using defaults)"
				}
			}
			fmt.Fprintf(w, "config:    %s\n", path)
			fmt.Fprintf(w, "models:    %s\n", e.app.Store().Dir())
			fmt.Fprintf(w, "detectors: %s\n", strings.Join(e.app.Registry().Names(), ", "))
			fmt.Fprintf(w, "effects:   %s\n\n", effectNames())

			data, err := config.Marshal(e.cfg)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}
