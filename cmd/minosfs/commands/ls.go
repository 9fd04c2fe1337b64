package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcavallo/minos/internal/cli/output"
	"github.com/mcavallo/minos/pkg/minfs"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the root directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, done, err := openFS()
		if err != nil {
			return err
		}
		defer func() { _ = done() }()

		root := fs.RootInode()
		table := output.NewTableData("NAME", "SIZE", "NLINK", "INO")
		for _, name := range root.Ls() {
			inode := root.Find(name)
			if inode == nil {
				continue
			}
			var st minfs.Stat
			inode.Stat(&st)
			table.AddRow(name,
				fmt.Sprintf("%d", inode.Size()),
				fmt.Sprintf("%d", st.Nlink),
				fmt.Sprintf("%d", st.Ino))
		}
		return output.PrintTable(os.Stdout, table)
	},
}
