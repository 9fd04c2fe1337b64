package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcavallo/minos/internal/cli/output"
	"github.com/mcavallo/minos/pkg/minfs"
)

var statCmd = &cobra.Command{
	Use:   "stat NAME",
	Short: "Show an entry's inode details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, done, err := openFS()
		if err != nil {
			return err
		}
		defer func() { _ = done() }()

		inode := fs.RootInode().Find(args[0])
		if inode == nil {
			return fmt.Errorf("%s: not found", args[0])
		}
		var st minfs.Stat
		inode.Stat(&st)

		mode := "file"
		if st.Mode == minfs.ModeDir {
			mode = "dir"
		}
		table := output.NewTableData("FIELD", "VALUE")
		table.AddRow("name", args[0])
		table.AddRow("mode", mode)
		table.AddRow("ino", fmt.Sprintf("%d", st.Ino))
		table.AddRow("nlink", fmt.Sprintf("%d", st.Nlink))
		table.AddRow("size", fmt.Sprintf("%d", inode.Size()))
		return output.PrintTable(os.Stdout, table)
	},
}
