package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/crm"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull scoring inputs for a month from the CRM",
	Long: `Fetch a month's AUM snapshots, meeting counts, converted insurance
policies and referral leads from the CRM and upsert them into the input
collections. Scorers read only from those collections, so a sync should
precede rescoring a month whose upstream data changed.

Examples:
  sync
  sync --month 2025-08 --from 2025-06`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("directory"); err != nil { // needs store and CRM
			return err
		}

		months, err := monthRange(cmd)
		if err != nil {
			return err
		}

		st, err := store.New(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		client := crm.NewClient(cfg.CRM)
		for _, month := range months {
			log := zap.L().With(zap.String("month", month.String()))

			snaps, err := client.AUMSnapshots(ctx, month)
			if err != nil {
				return eris.Wrapf(err, "sync: aum %s", month)
			}
			if err := st.SaveAUMSnapshots(ctx, snaps); err != nil {
				return err
			}

			meetings, err := client.MeetingCounts(ctx, month)
			if err != nil {
				return eris.Wrapf(err, "sync: meetings %s", month)
			}
			if err := st.SaveMeetingCounts(ctx, meetings); err != nil {
				return err
			}

			policies, err := client.Policies(ctx, month)
			if err != nil {
				return eris.Wrapf(err, "sync: policies %s", month)
			}
			if err := st.SaveInsurancePolicies(ctx, policies); err != nil {
				return err
			}

			leads, err := client.ReferralLeads(ctx, month)
			if err != nil {
				return eris.Wrapf(err, "sync: referrals %s", month)
			}
			if err := st.SaveReferralLeads(ctx, leads); err != nil {
				return err
			}

			log.Info("month inputs synced",
				zap.Int("aum_snapshots", len(snaps)),
				zap.Int("meeting_counts", len(meetings)),
				zap.Int("policies", len(policies)),
				zap.Int("referral_leads", len(leads)))
		}

		fmt.Printf("Synced inputs for %d month(s)\n", len(months))
		return nil
	},
}

func init() {
	f := syncCmd.Flags()
	f.String("month", "", "single month to sync (YYYY-MM, default current)")
	f.String("from", "", "sync every month from YYYY-MM through current")

	rootCmd.AddCommand(syncCmd)
}
