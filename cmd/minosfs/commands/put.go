package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put SRC [NAME]",
	Short: "Copy a host file into the image",
	Long: `put copies a host file into the image's root directory. With no NAME
the host file's base name is used. This is how program binaries are packed
into a bootable image.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		name := filepath.Base(src)
		if len(args) == 2 {
			name = args[1]
		}

		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}

		fs, done, err := openFS()
		if err != nil {
			return err
		}
		defer func() { _ = done() }()

		root := fs.RootInode()
		inode := root.Find(name)
		if inode == nil {
			if inode = root.Create(name); inode == nil {
				return fmt.Errorf("%s: cannot create", name)
			}
		} else {
			inode.Clear()
		}
		if n := inode.WriteAt(0, data); n != len(data) {
			return fmt.Errorf("%s: short write (%d of %d bytes)", name, n, len(data))
		}
		fmt.Printf("put %s -> %s (%d bytes)\n", src, name, len(data))
		return nil
	},
}
