package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcavallo/minos/internal/cli/prompt"
	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/config"
	"github.com/mcavallo/minos/pkg/minfs"
)

var (
	mkfsSize              string
	mkfsInodeBitmapBlocks uint32
	mkfsForce             bool
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format a new minfs image",
	Long: `mkfs creates a fresh image: super block, inode bitmap and area, data
bitmap and area, and an empty root directory. An existing image file is
only overwritten after confirmation (or with --force).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeBytes, err := config.ParseSize(mkfsSize)
		if err != nil {
			return err
		}
		if sizeBytes%minfs.BlockSize != 0 {
			return fmt.Errorf("size %s is not a multiple of the %d-byte block size", mkfsSize, minfs.BlockSize)
		}
		totalBlocks := uint32(sizeBytes / minfs.BlockSize)

		if storeKind == "file" && exists(imagePath) && !mkfsForce {
			ok, err := prompt.Confirm(fmt.Sprintf("Overwrite %s", imagePath), false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("aborted")
			}
		}

		dev, closeDev, err := openDevice(true, totalBlocks)
		if err != nil {
			return err
		}
		defer func() { _ = closeDev() }()

		cache := blockcache.NewManager(0)
		minfs.Create(dev, cache, totalBlocks, mkfsInodeBitmapBlocks)
		cache.SyncAll()

		fmt.Printf("formatted %s: %d blocks (%s), %d inode bitmap block(s)\n",
			imagePath, totalBlocks, mkfsSize, mkfsInodeBitmapBlocks)
		return nil
	},
}

func init() {
	mkfsCmd.Flags().StringVar(&mkfsSize, "size", "4Mi", "image size (e.g. 4Mi, 16Mi)")
	mkfsCmd.Flags().Uint32Var(&mkfsInodeBitmapBlocks, "inode-bitmap-blocks", 1, "inode bitmap blocks (4096 inodes each)")
	mkfsCmd.Flags().BoolVar(&mkfsForce, "force", false, "overwrite without confirmation")
}
