package main

import (
	"fmt"
	"os"
	"os/signal"

	"yuno/config"
	"yuno/models"
	"yuno/services"

	"github.com/spf13/cobra"
)

var (
	chatURL  string
	apiKey   string
	modeFlag string
	userID   string
	resumeID string

	rootCmd = &cobra.Command{
		Use:          "yuno-chat",
		Short:        "Talk to YUNO from the terminal",
		SilenceUsage: true,
		RunE:         runChat,
	}

	modesCmd = &cobra.Command{
		Use:   "modes",
		Short: "List the conversation modes",
		Run: func(cmd *cobra.Command, args []string) {
			for _, m := range models.Modes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-13s %s\n", m.ID, m.Description)
			}
		},
	}
)

func init() {
	cfg := config.Load()
	rootCmd.Flags().StringVar(&chatURL, "url", cfg.ChatURL, "Chat endpoint of the YUNO server.")
	rootCmd.Flags().StringVar(&apiKey, "key", cfg.ClientKey, "Bearer token sent to the chat endpoint.")
	rootCmd.Flags().StringVarP(&modeFlag, "mode", "m", string(models.ModeCasual), "Conversation mode.")
	rootCmd.Flags().StringVarP(&userID, "user", "u", "local", "User the conversation is stored under.")
	rootCmd.Flags().StringVar(&resumeID, "resume", "", "Resume a stored conversation by ID.")
	rootCmd.AddCommand(modesCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	mode, err := models.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	store, closeStore, err := services.OpenStore(ctx, config.Load())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	printer := newStreamPrinter(out)
	opts := services.ChatSessionOptions{
		UserID:   userID,
		Mode:     mode,
		ChatURL:  chatURL,
		APIKey:   apiKey,
		Store:    store,
		OnUpdate: printer.Update,
		Notifier: services.NotifierFunc(func(n services.Notice) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s] %s\n", n.Title, n.Description)
		}),
	}

	var session *services.ChatSession
	if resumeID != "" {
		session, err = services.ResumeChatSession(ctx, opts, resumeID)
	} else {
		session, err = services.NewChatSession(opts)
	}
	if err != nil {
		return err
	}
	printer.Reset(session.Transcript())

	fmt.Fprintf(out, "YUNO · %s\n", mode.Title())
	for _, msg := range session.Transcript() {
		fmt.Fprintf(out, "%s: %s\n", speaker(msg.Role), msg.Content)
	}

	return runREPL(ctx, cmd.InOrStdin(), out, session, printer)
}

func speaker(role models.Role) string {
	if role == models.RoleUser {
		return "you"
	}
	return "yuno"
}
