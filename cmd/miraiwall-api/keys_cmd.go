package main

import (
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/spf13/cobra"
)

func newKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage persisted license keys",
	}
	keysCmd.AddCommand(newKeysImportCommand(), newKeysGenerateCommand())
	return keysCmd
}

func newKeysImportCommand() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import license keys from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer file.Close()

			rawKeys, err := keys.ParseImportFile(file)
			if err != nil {
				return err
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			service, err := rt.keysService()
			if err != nil {
				return err
			}
			result, err := service.Import(cmd.Context(), rawKeys)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inserted: %d\nduplicates: %d\n", result.Inserted, result.Duplicates)
			for _, invalid := range result.Invalid {
				fmt.Fprintf(out, "invalid: %q\n", invalid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "YAML file listing license keys")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newKeysGenerateCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store fresh license keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			service, err := rt.keysService()
			if err != nil {
				return err
			}
			generated, err := service.GenerateAndStore(cmd.Context(), count)
			if err != nil {
				return err
			}
			for _, key := range generated {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of keys to generate")
	return cmd
}
