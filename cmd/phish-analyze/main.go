package main

import (
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/allowlist"
	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/logging"
	"github.com/savegrandma/phishguard/internal/scoring"
	"github.com/savegrandma/phishguard/internal/textutil"
)

var (
	inputFile    = flag.String("file", "", "Input email file (use stdin if not specified)")
	trusted      = flag.String("trusted", "", "Comma-separated list of trusted sender addresses")
	urgency      = flag.Bool("urgency-check", true, "Enable the urgency-language heuristic")
	domainCheck  = flag.Bool("domain-check", true, "Enable the suspicious-sender-domain heuristic")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog      = flag.Bool("json-log", false, "Output logs in JSON format")
	previewBytes = flag.Int("preview", 500, "Body preview size in verbose mode")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rec, err := readRecord(*inputFile)
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	allow := allowlist.New(0, logger)
	if *trusted != "" {
		for _, email := range strings.Split(*trusted, ",") {
			allow.Add(strings.TrimSpace(email))
		}
	}

	scorer := scoring.NewScorer(allow, logger, *urgency, *domainCheck)
	result := scorer.Analyze(rec)

	printResult(rec, result)
	if result.IsSuspicious {
		os.Exit(1)
	}
}

// readRecord parses an RFC822 message from the file or stdin into the
// engine's record shape.
func readRecord(path string) (*core.Record, error) {
	var reader io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		reader = f
	}

	msg, err := mail.ReadMessage(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	rec := &core.Record{
		Subject: msg.Header.Get("Subject"),
		Body:    textutil.SanitizeUTF8(string(body)),
	}
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		rec.SenderName = from.Name
		rec.SenderEmail = from.Address
	}
	if replyTo, err := mail.ParseAddress(msg.Header.Get("Reply-To")); err == nil {
		rec.ReplyTo = replyTo.Address
	}
	return rec, nil
}

func printResult(rec *core.Record, result *core.Result) {
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s <%s>\n", rec.SenderName, rec.SenderEmail)
	fmt.Printf("Subject: %s\n", rec.Subject)
	fmt.Printf("Body length: %d bytes\n", len(rec.Body))
	if *verbose && rec.Body != "" {
		fmt.Printf("\nBody preview:\n%s\n", textutil.Truncate(rec.Body, *previewBytes))
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Suspicious: %t\n", result.IsSuspicious)
	fmt.Printf("Score: %d (threshold %d)\n", result.Score, scoring.SuspicionThreshold)
	fmt.Printf("Allow-listed: %t\n", result.WasAllowlisted)
	for _, ind := range result.Indicators {
		fmt.Printf("  - %s (+%d): %s\n", ind.Kind, ind.Weight, ind.Description)
		if ind.Detail != "" {
			fmt.Printf("    %s\n", ind.Detail)
		}
	}
}
