package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chunkvault/pkg/app"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"
	"chunkvault/pkg/xorurl"

	"github.com/spf13/cobra"
)

var restoreOutput string

var restoreCmd = &cobra.Command{
	Use:   "restore [manifest|url|label]",
	Short: "Decrypt a published file",
	Long:  `Fetch the manifest and its chunks from the sink, decrypt them, and write the original bytes to stdout or --output.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var w io.Writer = cmd.OutOrStdout()
		if restoreOutput != "" {
			f, ferr := os.Create(restoreOutput)
			if ferr != nil {
				return ferr
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()
			w = f
		}

		if remoteMode() {
			cli, err := GetRemoteClient()
			if err != nil {
				return err
			}
			defer cli.Close()
			_, err = cli.Download(cmd.Context(), args[0], w)
			return err
		}

		if CV == nil {
			return fmt.Errorf("app not initialized")
		}
		addr, err := resolveRef(cmd.Context(), CV, args[0])
		if err != nil {
			return err
		}
		if err := CV.GetExporter().Restore(cmd.Context(), addr, w, CV.EngineOptions...); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		return nil
	},
}

// resolveRef 依次尝试 Hex 地址、safe:// URL、短 Hex 前缀、标签名
func resolveRef(ctx context.Context, a *app.App, ref string) (types.Address, error) {
	if addr, err := types.ParseAddress(ref); err == nil {
		return addr, nil
	}
	if strings.HasPrefix(ref, xorurl.Scheme) {
		addr, _, err := xorurl.Decode(ref)
		return addr, err
	}
	if isHexPrefix(ref) {
		addr, err := a.Store.ExpandHash(ctx, types.AddressPrefix(ref))
		if err == nil {
			return addr, nil
		}
		// 没找到时可能是一个长得像 Hex 的标签，继续往下
		if !errors.Is(err, storage.ErrNotFound) {
			return types.Address{}, fmt.Errorf("expand %q: %w", ref, err)
		}
	}
	if a.Repository == nil {
		return types.Address{}, fmt.Errorf("%q is not an address and no catalog is configured", ref)
	}
	label, err := a.Repository.GetLabel(ctx, ref)
	if err != nil {
		return types.Address{}, fmt.Errorf("label %q: %w", ref, err)
	}
	return types.ParseAddress(label.ManifestAddress)
}

func isHexPrefix(s string) bool {
	if len(s) < 4 || len(s) >= 2*types.AddressSize {
		return false
	}
	return strings.Trim(s, "0123456789abcdefABCDEF") == ""
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(restoreCmd)
}
