package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsweep/opsweep/internal/services"
)

func newRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup-key]",
		Short: "Retrieve a backup record for re-provisioning",
		Long: `Restore prints the configuration snapshot captured before a resource was
deleted, for feeding back into the platform's deployment tooling. Use
--list to enumerate available backups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			svc := services.NewRestoreService(a.blobs, a.log)

			if list {
				prefix := ""
				if len(args) == 1 {
					prefix = args[0]
				}
				keys, err := svc.ListBackups(ctx, prefix)
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Println("no backups found")
					return nil
				}
				for _, k := range keys {
					fmt.Println(k)
				}
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("backup key is required (see restore --list)")
			}

			rec, err := svc.Restore(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Resource:  %s (%s)\n", rec.ResourceName, rec.ResourceType)
			fmt.Printf("ID:        %s\n", rec.ResourceID)
			fmt.Printf("Captured:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			if rec.SecretsOmitted {
				fmt.Println("Warning:   secret values were not captured; re-enter them manually after re-provisioning")
			}
			fmt.Printf("\n%s\n", rec.Contents)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list backup keys instead of retrieving one")

	return cmd
}
