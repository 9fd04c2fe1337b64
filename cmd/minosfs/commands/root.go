// Package commands implements the minosfs image tool: formatting,
// inspecting and populating minfs images.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/blockdev"
	badgerdev "github.com/mcavallo/minos/pkg/blockdev/badger"
	"github.com/mcavallo/minos/pkg/minfs"
)

var (
	// Global flags.
	imagePath string
	storeKind string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "minosfs",
	Short: "minosfs - minfs image tool",
	Long: `minosfs formats, inspects and populates minfs images. Images can live
in a raw file or a Badger store; the on-disk block layout is identical.

Use "minosfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", "minos.img", "image file or badger directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "block store kind: file or badger")

	rootCmd.AddCommand(mkfsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// openDevice opens the configured block store.
func openDevice(create bool, totalBlocks uint32) (blockdev.BlockDevice, func() error, error) {
	switch storeKind {
	case "file":
		if create {
			dev, err := blockdev.CreateFile(imagePath, totalBlocks)
			if err != nil {
				return nil, nil, err
			}
			return dev, dev.Close, nil
		}
		dev, err := blockdev.OpenFile(imagePath)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	case "badger":
		dev, err := badgerdev.Open(imagePath)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", storeKind)
	}
}

// openFS mounts the configured image.
func openFS() (*minfs.FileSystem, func() error, error) {
	dev, closeDev, err := openDevice(false, 0)
	if err != nil {
		return nil, nil, err
	}
	cache := blockcache.NewManager(0)
	fs, err := minfs.Open(dev, cache)
	if err != nil {
		_ = closeDev()
		return nil, nil, fmt.Errorf("mount %s: %w", imagePath, err)
	}
	done := func() error {
		cache.SyncAll()
		return closeDev()
	}
	return fs, done, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
