package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrBackupsDisabled is returned by the backup command without BACKUP_ENABLED.
var ErrBackupsDisabled = errors.New("backups are disabled; set BACKUP_ENABLED=true and BACKUP_BUCKET")

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload a database backup and rotate old ones",
		Args:  cobra.NoArgs,
		RunE:  runBackupCmd,
	}
}

func runBackupCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	container, err := a.wire(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	if container.BackupService == nil {
		return ErrBackupsDisabled
	}

	key, err := container.BackupService.CreateAndUpload(cmd.Context())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", Success("Uploaded"), Primary(key))

	if err := container.BackupService.RotateOldBackups(cmd.Context()); err != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", Warning("Rotation incomplete:"), err)
	}
	return nil
}
