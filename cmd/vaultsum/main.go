// vaultsum summarizes a chat export or arbitrary text via the GigaChat API.
//
// Credentials come from the environment (or a .env file in the working
// directory): GIGACHAT_BASIC_AUTH is required, GIGACHAT_SCOPE and
// GIGACHAT_MODEL are optional.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tgvault/internal/summary"
	"tgvault/internal/textfmt"
)

func main() {
	var (
		file = flag.String("file", "", "path to a text file to summarize")
		text = flag.String("text", "", "text to summarize (takes priority over -file)")
	)
	flag.Parse()

	// .env is optional, real environment variables win either way
	_ = godotenv.Load()

	basicAuth := os.Getenv("GIGACHAT_BASIC_AUTH")
	if basicAuth == "" {
		fmt.Fprintln(os.Stderr, "GIGACHAT_BASIC_AUTH is not set")
		fmt.Fprintln(os.Stderr, "\nExport it or put it in a .env file:")
		fmt.Fprintln(os.Stderr, "  GIGACHAT_BASIC_AUTH=base64(client_id:client_secret)")
		os.Exit(1)
	}

	input := *text
	if input == "" && *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
			os.Exit(1)
		}
		input = string(data)
	}
	if strings.TrimSpace(input) == "" {
		fmt.Fprintln(os.Stderr, "Nothing to summarize: pass -text or -file")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := summary.NewClient(summary.Config{
		BasicAuth: basicAuth,
		Scope:     os.Getenv("GIGACHAT_SCOPE"),
		Model:     os.Getenv("GIGACHAT_MODEL"),
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := client.Summarize(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rule := strings.Repeat("-", textfmt.Width)
	fmt.Println(rule)
	fmt.Println(textfmt.Wrap(result))
	fmt.Println(rule)
}
