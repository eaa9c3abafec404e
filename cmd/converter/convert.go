package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
	"github.com/romariotrain/ebook-converter/internal/converter/repository"
	"github.com/romariotrain/ebook-converter/internal/converter/service"
	"github.com/romariotrain/ebook-converter/internal/logging"
)

type convertOptions struct {
	from   string
	to     string
	outDir string
	delay  time.Duration
}

func newConvertCmd() *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local file and write the result next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := convertFile(cmd.Context(), args[0], opts, cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", service.DefaultTargetFormat, "destination format id")
	cmd.Flags().StringVar(&opts.from, "from", "", "source format id (detected from the extension when empty)")
	cmd.Flags().StringVarP(&opts.outDir, "output", "o", "", "output directory (defaults to the input's directory)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "minimum conversion time")
	return cmd
}

// convertFile runs one file through the same workflow the HTTP service uses
// and returns the written path.
func convertFile(ctx context.Context, path string, opts convertOptions, cmd *cobra.Command) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	svc, err := service.New(service.Config{
		Repo:   repository.NewMemoryRepository(),
		Blobs:  repository.NewMemoryBlobStore(),
		Delay:  opts.delay,
		Logger: logging.New(cmd.ErrOrStderr(), "warn", "console", serviceName),
	})
	if err != nil {
		return "", err
	}

	sess, err := svc.CreateSession(ctx)
	if err != nil {
		return "", err
	}

	var declared string
	if opts.from != "" {
		f, ok := formats.Lookup(opts.from)
		if !ok {
			return "", fmt.Errorf("%w: %s", models.ErrUnknownFormat, opts.from)
		}
		declared = f.MediaType
	}

	if _, err := svc.SelectFile(ctx, sess.ID, filepath.Base(path), declared, bytes.NewReader(data)); err != nil {
		return "", err
	}
	if opts.from != "" {
		if _, err := svc.SetSourceFormat(ctx, sess.ID, opts.from); err != nil {
			return "", err
		}
	}
	if _, err := svc.SetTargetFormat(ctx, sess.ID, opts.to); err != nil {
		return "", err
	}

	if _, err := svc.StartConversion(ctx, sess.ID); err != nil {
		return "", err
	}
	svc.Wait()

	done, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	if done.Status != models.SuccessStatus {
		return "", fmt.Errorf("conversion failed: %s", done.ErrorMessage)
	}

	dl, err := svc.Download(ctx, sess.ID)
	if err != nil {
		return "", err
	}

	dir := opts.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, dl.FileName)
	if same, err := samePath(out, path); err != nil {
		return "", err
	} else if same {
		return "", fmt.Errorf("output %s would overwrite the input; choose another --output directory", out)
	}
	if err := os.WriteFile(out, dl.Data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return out, nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
