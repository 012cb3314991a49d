package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/breedid/internal/breedclient"
	"github.com/okian/breedid/internal/domain/types"
)

const identifyPollInterval = 250 * time.Millisecond

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var (
		source string
		report bool
		keep   bool
	)

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Upload an image, identify it and print the ranked breeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer func() { _ = f.Close() }()

			mediaType, err := detectMediaType(f, path)
			if err != nil {
				return err
			}

			c := ctx.client()
			defer c.Close()
			rctx := cmd.Context()

			view, err := c.CreateSession(rctx)
			if err != nil {
				return err
			}
			if !keep {
				defer func() { _ = c.DeleteSession(context.WithoutCancel(rctx), view.ID) }()
			}

			sub, err := c.UploadImage(rctx, view.ID, filepath.Base(path), mediaType, f, source)
			if err != nil {
				return err
			}
			if sub.Ignored {
				return fmt.Errorf("%s (%s) is not an image and was ignored", filepath.Base(path), mediaType)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Analyzing image...")
			session, err := awaitResults(rctx, c, view.ID)
			if err != nil {
				return err
			}
			printResults(out, session.Results)

			if report {
				text, err := c.Report(rctx, view.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, text)
			}
			if keep {
				fmt.Fprintf(out, "Session: %s\n", view.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "picker", "Intake path: picker or drop")
	cmd.Flags().BoolVar(&report, "report", false, "Also print the plain-text report")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the session instead of deleting it")
	return cmd
}

// detectMediaType uses the extension first and falls back to sniffing.
func detectMediaType(f *os.File, path string) (string, error) {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind image: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}

// awaitResults starts identification and polls until results are ready.
func awaitResults(ctx context.Context, c *breedclient.Client, id string) (types.SessionView, error) {
	res, err := c.Identify(ctx, id, true)
	if err != nil {
		return types.SessionView{}, err
	}
	session := res.Session
	for session.State == "processing" {
		select {
		case <-ctx.Done():
			return types.SessionView{}, ctx.Err()
		case <-time.After(identifyPollInterval):
		}
		if session, err = c.Session(ctx, id); err != nil {
			return types.SessionView{}, err
		}
	}
	if session.State != "results_ready" {
		return types.SessionView{}, fmt.Errorf("identification did not complete (state %s)", session.State)
	}
	return session, nil
}

func printResults(out io.Writer, results []types.RankedPrediction) {
	for _, r := range results {
		fmt.Fprintf(out, "%d. %s  %.0f%% (%s)\n", r.Rank, r.BreedName, r.Confidence*100, r.Tier)
		ch := r.Characteristics
		fmt.Fprintf(out, "   %s, %s, %s\n", ch.Origin, ch.PrimaryUse, ch.AverageWeight)
	}
}
