package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// readAll copies the named file out of the image.
func readAll(name string) ([]byte, error) {
	fs, done, err := openFS()
	if err != nil {
		return nil, err
	}
	defer func() { _ = done() }()

	inode := fs.RootInode().Find(name)
	if inode == nil {
		return nil, fmt.Errorf("%s: not found", name)
	}
	data := make([]byte, inode.Size())
	if n := inode.ReadAt(0, data); n != len(data) {
		return nil, fmt.Errorf("%s: short read (%d of %d bytes)", name, n, len(data))
	}
	return data, nil
}

var getCmd = &cobra.Command{
	Use:   "get NAME DST",
	Short: "Copy a file out of the image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readAll(args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return err
		}
		fmt.Printf("get %s -> %s (%d bytes)\n", args[0], args[1], len(data))
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat NAME",
	Short: "Print a file from the image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readAll(args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}
