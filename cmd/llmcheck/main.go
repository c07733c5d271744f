package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/wolfman30/dental-scheduling-agent/cmd/mainconfig"
	"github.com/wolfman30/dental-scheduling-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// errNoAPIKey is returned by the models command when GEMINI_API_KEY is unset.
var errNoAPIKey = errors.New("GEMINI_API_KEY is not set")

type runContext struct {
	cfg    *appconfig.Config
	logger *logging.Logger
	out    io.Writer
}

// ModelsCmd lists the Gemini models that support generateContent.
type ModelsCmd struct{}

func (c *ModelsCmd) Run(rc *runContext) error {
	if strings.TrimSpace(rc.cfg.GeminiAPIKey) == "" {
		return errNoAPIKey
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := conversation.NewGeminiLLMClient(ctx, rc.cfg.GeminiAPIKey, rc.cfg.GeminiModel)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	models, err := client.ListGenerateModels(ctx)
	if err != nil {
		return fmt.Errorf("list models (check the key and that the Generative Language API is enabled): %w", err)
	}
	return printModels(rc.out, models)
}

func printModels(out io.Writer, models []conversation.ModelInfo) error {
	if len(models) == 0 {
		_, err := fmt.Fprintln(out, "no models supporting generateContent were found for this key")
		return err
	}
	for _, m := range models {
		if _, err := fmt.Fprintf(out, "%s\t%s\tin=%d out=%d\n", m.Name, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit); err != nil {
			return err
		}
	}
	return nil
}

// PromptCmd sends one patient message through the configured provider chain
// with the production system prompt.
type PromptCmd struct {
	Message string `arg:"" optional:"" help:"Patient message." default:"Olá, gostaria de marcar uma limpeza para amanhã às 10h."`
}

func (c *PromptCmd) Run(rc *runContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.LLMTimeout+10*time.Second)
	defer cancel()

	client, cleanup, err := bootstrap.BuildLLMClient(ctx, rc.cfg, mainconfig.LazyAWSConfig(rc.cfg), rc.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	prompt := conversation.PromptConfig{
		ClinicName:    rc.cfg.ClinicName,
		AssistantName: rc.cfg.AssistantName,
		OpenHour:      rc.cfg.OpenHour,
		CloseHour:     rc.cfg.CloseHour,
	}
	started := time.Now()
	resp, err := client.Complete(ctx, conversation.LLMRequest{
		System:      []string{prompt.SystemPrompt(time.Now())},
		Messages:    []conversation.ChatMessage{{Role: conversation.ChatRoleUser, Content: c.Message}},
		Temperature: -1,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(rc.out, "reply (%s, %d in / %d out tokens):\n%s\n",
		time.Since(started).Round(time.Millisecond), resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Text)

	action, err := conversation.TryExtractAction(resp.Text)
	switch {
	case err != nil:
		fmt.Fprintf(rc.out, "\naction: %v\n", err)
	case action != nil:
		fmt.Fprintf(rc.out, "\naction: %s for %q at %s\n", action.Kind, action.PatientName, action.RequestedStart)
	}
	return nil
}

var cli struct {
	Models ModelsCmd `cmd:"" help:"List models available to the Gemini key." default:"1"`
	Prompt PromptCmd `cmd:"" help:"Send a smoke-test message through the LLM chain."`
}

func main() {
	_ = godotenv.Load()

	ctx := kong.Parse(&cli,
		kong.Name("llmcheck"),
		kong.Description("Checks LLM provider credentials for the scheduling assistant"),
		kong.UsageOnError(),
	)

	cfg := appconfig.Load()
	rc := &runContext{cfg: cfg, logger: logging.New(cfg.LogLevel), out: os.Stdout}
	if err := ctx.Run(rc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
