package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/store"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage outreach campaign enrollment",
}

var campaignEnrollCmd = &cobra.Command{
	Use:   "enroll [campaign-name]",
	Short: "Enroll ready leads into a campaign",
	Long:  "Enrolls leads in the ready stage into the named campaign, or the configured default. In simulation mode enrollments are recorded locally without provider calls.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, err := initOutreach(st)
		if err != nil {
			return err
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		tier, _ := cmd.Flags().GetString("tier")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")

		stats, err := svc.EnrollReady(ctx, name, store.LeadFilter{
			Tier:  model.Tier(tier),
			City:  city,
			Limit: limit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Enrolled %d of %d candidates (%d no email, %d wrong tier, %d failed)\n",
			stats.Enrolled, stats.Candidates, stats.NoEmail, stats.WrongTier, stats.Failed)
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured campaigns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, err := initOutreach(st)
		if err != nil {
			return err
		}

		campaigns := svc.Campaigns()
		if len(campaigns) == 0 {
			fmt.Fprintln(os.Stderr, "No campaigns configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROVIDER ID\tTIERS\tSTEPS")
		for _, c := range campaigns {
			fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", c.Name, c.ProviderID, c.Tiers, len(c.Steps))
		}
		return w.Flush()
	},
}

func init() {
	campaignEnrollCmd.Flags().String("tier", "", "only enroll leads of this tier")
	campaignEnrollCmd.Flags().String("city", "", "only enroll leads in this city")
	campaignEnrollCmd.Flags().Int("limit", 0, "max leads to enroll")
	campaignCmd.AddCommand(campaignEnrollCmd)
	campaignCmd.AddCommand(campaignListCmd)
	rootCmd.AddCommand(campaignCmd)
}
