package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sumire/providerlab/internal/domain"
	"github.com/sumire/providerlab/internal/logger"
	"github.com/sumire/providerlab/internal/repository"
	"github.com/sumire/providerlab/internal/service"
)

func newProvidersCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage the provider status table",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the status of every provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStatuses(cmd, func(s *service.StatusService) error {
				var (
					providers []domain.Provider
					err       error
				)
				if status != "" {
					providers, err = s.ListByStatus(cmd.Context(), status)
				} else {
					providers, err = s.List(cmd.Context())
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PROVIDER\tAUTHORIZE\tPROFILE\tREFRESH\tREVOKE")
				for _, p := range providers {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.AuthorizeStatus, p.ProfileStatus, p.RefreshStatus, p.RevokeStatus)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVarP(&status, "status", "s", "", "Only list providers with a column in this status")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed",
			Short: "Insert a row for every supported provider",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withStatuses(cmd, func(s *service.StatusService) error {
					n, err := s.Seed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d providers\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Set every status column back to untested",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withStatuses(cmd, func(s *service.StatusService) error {
					n, err := s.Reset(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "reset %d providers\n", n)
					return nil
				})
			},
		},
		list,
	)

	return cmd
}

func (o *options) withStatuses(cmd *cobra.Command, fn func(*service.StatusService) error) error {
	e, err := o.initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	statuses := service.NewStatusService(repository.NewProviderRepository(e.db), logger.WithComponent("status"))
	return fn(statuses)
}
