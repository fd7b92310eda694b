package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SonianW/MetaPrompter/internal/prompt"
)

func (a *app) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List registered prompt templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.lifecycle.Templates()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVARIABLES")
			for _, name := range reg.Names() {
				t, _ := reg.Get(name)
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(t.Variables(), ", "))
			}
			return w.Flush()
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "generate <requirement>",
		Short: "Write a prompt for a requirement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, a.lifecycle.Generate(cmd.Context(), strings.Join(args, " "), model))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func (a *app) optimizeCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "optimize [prompt|-]",
		Short: "Rewrite a prompt to be clearer and more specific",
		Long:  "Rewrite a prompt. With no argument or \"-\" the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptArg(cmd, args)
			if err != nil {
				return err
			}
			return report(cmd, a.lifecycle.Optimize(cmd.Context(), text, model))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "evaluate [prompt|-]",
		Short: "Score a prompt out of 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptArg(cmd, args)
			if err != nil {
				return err
			}
			return report(cmd, a.lifecycle.Evaluate(cmd.Context(), text, model))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	var (
		model string
		brief bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [prompt|-]",
		Short: "Analyse prompt quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptArg(cmd, args)
			if err != nil {
				return err
			}
			return report(cmd, a.lifecycle.AnalyzeQuality(cmd.Context(), text, !brief, model))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().BoolVar(&brief, "brief", false, "short verdict instead of the full rubric")
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	var (
		model string
		task  string
	)
	cmd := &cobra.Command{
		Use:   "compare <original> <optimized>",
		Short: "Compare two prompts on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, a.lifecycle.ComparePrompts(cmd.Context(), args[0], args[1], task, model))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&task, "task", "", "task both prompts should accomplish")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// promptArg joins the positional arguments, or reads stdin for none or "-".
func promptArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	in := cmd.InOrStdin()
	if in == nil {
		in = os.Stdin
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return text, nil
}

func report(cmd *cobra.Command, res prompt.Result) error {
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Kind, res.Text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return nil
}
