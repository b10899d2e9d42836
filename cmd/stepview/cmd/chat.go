package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/stepview/pkg/chat"
)

var chatHTML bool

var chatCmd = &cobra.Command{
	Use:   "chat <message>...",
	Short: "Send a message to the CAD chat backend",
	Long: `Sends one message to the chat backend and prints the reply and the URL of
any model it generated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models generated by the chat backend",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the chat backend",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(healthCmd)
	chatCmd.Flags().BoolVar(&chatHTML, "html", false, "print the reply as sanitized HTML")
}

func newChatClient() (*chat.Client, error) {
	return chat.New(chat.Options{
		BaseURL:      cfg.API.BaseURL,
		ChatPath:     cfg.API.ChatPath,
		HealthPath:   cfg.API.HealthPath,
		ModelsPath:   cfg.API.ModelsPath,
		Timeout:      cfg.API.Timeout,
		RetryMax:     cfg.API.RetryMax,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newChatClient()
	if err != nil {
		return err
	}
	reply, err := client.Send(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if chatHTML {
		fmt.Fprintln(w, chat.RenderMarkdown(reply.Text))
	} else {
		fmt.Fprintln(w, reply.Text)
	}
	if ref, ok := reply.Model(); ok {
		u, err := client.Resolve(ref.URL)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nModel (%s): %s\n", ref.Format, u)
	}
	if reply.SimilarityScore > 0 {
		fmt.Fprintf(w, "Similarity: %.1f%%\n", reply.SimilarityScore*100)
	}
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	client, err := newChatClient()
	if err != nil {
		return err
	}
	models, err := client.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(models) == 0 {
		fmt.Fprintln(w, "No generated models")
		return nil
	}
	for _, m := range models {
		fmt.Fprintf(w, "%-32s %s\n", m.Name, m.URL)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := newChatClient()
	if err != nil {
		return err
	}
	h, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", client.BaseURL(), h.Status, h.Message)
	return nil
}
