package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link OLD NEW",
	Short: "Add a hard link in the root directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, done, err := openFS()
		if err != nil {
			return err
		}
		defer func() { _ = done() }()

		if !fs.RootInode().Link(args[0], args[1]) {
			return fmt.Errorf("%s: not found", args[0])
		}
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink NAME",
	Short: "Remove a directory entry",
	Long: `unlink removes the entry from the root directory. When the last link
to a file goes away its data blocks are reclaimed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, done, err := openFS()
		if err != nil {
			return err
		}
		defer func() { _ = done() }()

		if !fs.RootInode().Unlink(args[0]) {
			return fmt.Errorf("%s: not found", args[0])
		}
		return nil
	},
}
