package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/crm"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "RM directory operations",
}

var directorySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the RM directory from the CRM or a snapshot file",
	Long: `Replace the RM directory with the latest snapshot. By default the
snapshot is pulled from the CRM user feed; --file loads a JSON array of RM
records instead, which also covers environments without CRM access.

Scorers resolve RM display names against this directory, so a sync should
precede a scoring run whenever people join, leave or change teams.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("file")

		var snapshot []model.RM
		if file != "" {
			if err := cfg.Validate("migrate"); err != nil { // store only
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return eris.Wrapf(err, "directory: read %s", file)
			}
			if err := json.Unmarshal(data, &snapshot); err != nil {
				return eris.Wrapf(err, "directory: parse %s", file)
			}
		} else {
			if err := cfg.Validate("directory"); err != nil {
				return err
			}
			client := crm.NewClient(cfg.CRM)
			var err error
			snapshot, err = client.Directory(ctx)
			if err != nil {
				return err
			}
		}

		if len(snapshot) == 0 {
			return eris.New("directory: snapshot is empty, refusing to wipe the directory")
		}

		st, err := store.New(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := identity.NewDirectory(st.Pool()).SyncAll(ctx, snapshot); err != nil {
			return err
		}

		zap.L().Info("rm directory synced", zap.Int("records", len(snapshot)))
		fmt.Printf("Synced %d RM records\n", len(snapshot))
		return nil
	},
}

func init() {
	directorySyncCmd.Flags().String("file", "", "JSON snapshot file instead of the CRM feed")
	directoryCmd.AddCommand(directorySyncCmd)
	rootCmd.AddCommand(directoryCmd)
}
