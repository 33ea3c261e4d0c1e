package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadflow/internal/ingest"
	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Run raw emails through the ingestion pipeline",
	Long:  "Reads one email per file (From/Subject headers, blank line, body) and ingests each. With no arguments, reads a single email from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, metrics.NopSink{})
		if err != nil {
			return err
		}
		defer env.Close()

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)
		mailbox, _ := cmd.Flags().GetString("mailbox")

		if len(args) == 0 {
			raw, err := readRawEmail(os.Stdin, mailbox)
			if err != nil {
				return err
			}
			res, err := env.Orchestrator.IngestEmail(ctx, tenant, raw)
			if err != nil {
				return err
			}
			printResult("stdin", res)
			return nil
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Ingest.MaxConcurrent)

		for _, path := range args {
			g.Go(func() error {
				f, err := os.Open(path)
				if err != nil {
					return eris.Wrapf(err, "open %s", path)
				}
				defer f.Close() //nolint:errcheck

				raw, err := readRawEmail(f, mailbox)
				if err != nil {
					return eris.Wrapf(err, "parse %s", path)
				}

				res, err := env.Orchestrator.IngestEmail(gctx, tenant, raw)
				if err != nil {
					return eris.Wrapf(err, "ingest %s", path)
				}

				mu.Lock()
				printResult(path, res)
				mu.Unlock()
				return nil
			})
		}

		return g.Wait()
	},
}

// readRawEmail parses the minimal on-disk email format: header lines until
// the first blank line, the rest is the body.
func readRawEmail(r io.Reader, mailbox string) (model.RawEmail, error) {
	raw := model.RawEmail{Mailbox: mailbox}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inBody := false
	var body strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if inBody {
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}
		if strings.TrimSpace(line) == "" {
			inBody = true
			continue
		}
		switch {
		case strings.HasPrefix(strings.ToLower(line), "from:"):
			raw.From = strings.TrimSpace(line[len("from:"):])
		case strings.HasPrefix(strings.ToLower(line), "subject:"):
			raw.Subject = strings.TrimSpace(line[len("subject:"):])
		case strings.HasPrefix(strings.ToLower(line), "mailbox:"):
			raw.Mailbox = strings.TrimSpace(line[len("mailbox:"):])
		default:
			// Not a header we know; the body has started.
			inBody = true
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return raw, eris.Wrap(err, "read email")
	}

	raw.RawText = body.String()
	return raw, nil
}

func printResult(name string, res *ingest.Result) {
	switch {
	case res.Created:
		fmt.Printf("%s: created lead %s (parser=%s source=%s)\n", name, res.Lead.ID, res.Parser, res.Lead.Source)
	case res.Accepted:
		fmt.Printf("%s: duplicate of lead %s\n", name, res.Lead.ID)
	default:
		fmt.Printf("%s: rejected (%s, classified %s %.2f)\n", name, res.Reason, res.Classification.Kind, res.Classification.Confidence)
	}
}

func init() {
	ingestCmd.Flags().String("tenant", "", "tenant ID (default from config)")
	ingestCmd.Flags().String("mailbox", "info@rendetalje.dk", "mailbox the email arrived at")
	rootCmd.AddCommand(ingestCmd)
}
