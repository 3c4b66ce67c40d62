package cmd

import (
	"fmt"

	"github.com/kursadbilgin/reservation-notifier/internal/config"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
	"github.com/kursadbilgin/reservation-notifier/internal/service"
	"github.com/spf13/cobra"
)

func newSendTestCmd() *cobra.Command {
	var phoneNumber, message string

	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a free-text WhatsApp message to check credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			// A one-off send never needs the shared Redis window.
			rt.cfg.RateLimiterBackend = config.RateLimiterLocal

			msgComposer, err := rt.composer()
			if err != nil {
				return err
			}
			whatsapp, err := rt.provider()
			if err != nil {
				return err
			}
			limiter, err := rt.rateLimiter()
			if err != nil {
				return err
			}

			diagnostics, err := service.NewDiagnosticService(msgComposer, rt.normalizer(), whatsapp, limiter, rt.logger)
			if err != nil {
				return err
			}

			resp, err := diagnostics.SendTest(cmd.Context(), phoneNumber, message)
			if err != nil {
				return fmt.Errorf("send failed: %s", provider.Detail(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent, provider message id %s\n", resp.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&phoneNumber, "phone", "", "recipient phone number")
	cmd.Flags().StringVar(&message, "message", "", "message body")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}
