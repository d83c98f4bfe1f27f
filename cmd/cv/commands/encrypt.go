package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/client"
	"chunkvault/pkg/core"
	"chunkvault/pkg/exporter"
	"chunkvault/pkg/ignore"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/pipeline"
	"chunkvault/pkg/types"
	"chunkvault/pkg/xorurl"

	"github.com/spf13/cobra"
)

var encryptLabel string

var encryptCmd = &cobra.Command{
	Use:   "encrypt [file|dir]",
	Short: "Self-encrypt a file and publish its chunks",
	Long: `Load the file into the bridge, run self-encryption, and publish the encrypted
chunks plus a manifest to the configured sink. With --label the manifest is also
recorded under that name in the catalog.

A directory is walked recursively; paths matched by .cvignore are skipped and each
file is labelled <label>/<relative path>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if st, err := os.Stat(args[0]); err == nil && st.IsDir() {
			return encryptDir(cmd, args[0], encryptLabel)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if remoteMode() {
			cli, err := GetRemoteClient()
			if err != nil {
				return err
			}
			defer cli.Close()
			return encryptRemote(cmd.Context(), cmd.OutOrStdout(), cli, f, encryptLabel)
		}

		if CV == nil {
			return fmt.Errorf("app not initialized")
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		manifest, err := encryptLocal(cmd.Context(), cmd.OutOrStdout(), CV, data, encryptLabel)
		if err != nil {
			return err
		}
		url, err := xorurl.Encode(manifest, CV.URLBase)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nManifest: %s\nURL:      %s\n", manifest, url)
		return nil
	},
}

// encryptDir 逐个加密目录下未被忽略的文件，遇到第一个错误就停
func encryptDir(cmd *cobra.Command, root, label string) error {
	if remoteMode() {
		return errors.New("directory encryption runs locally only")
	}
	if CV == nil {
		return fmt.Errorf("app not initialized")
	}

	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return err
	}
	files, err := matcher.Walk(root)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		fileLabel := ""
		if label != "" {
			fileLabel = path.Join(label, rel)
		}

		fmt.Fprintf(w, "== %s\n", rel)
		manifest, err := encryptLocal(cmd.Context(), w, CV, data, fileLabel)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		fmt.Fprintf(w, "Manifest: %s\n\n", manifest)
	}
	fmt.Fprintf(w, "Encrypted %d files.\n", len(files))
	return nil
}

// encryptLocal 在本进程内走完 加载 -> 加密 -> 发布 -> 记录
func encryptLocal(ctx context.Context, w io.Writer, a *app.App, data []byte, label string) (types.Address, error) {
	// 1. 加载
	b, err := a.NewBridge()
	if err != nil {
		return types.Address{}, err
	}
	if err := b.LoadInput(data); err != nil {
		return types.Address{}, fmt.Errorf("file too large for bridge: %w", err)
	}

	// 2. 加密
	dm, err := a.Pipeline.Encrypt(ctx, b, len(data))
	if err != nil {
		return types.Address{}, fmt.Errorf("self-encrypt failed (exit code %d): %w", b.ExitCode(), err)
	}
	if err := exporter.PrintDataMap(w, dm, a.URLBase); err != nil {
		return types.Address{}, err
	}

	// 3. 同一输入已经发布过且结果一致，只更新标签
	digest := core.CalculateAddress(data)
	if prev, ok, err := previousRun(ctx, a, digest, dm); err != nil {
		return types.Address{}, err
	} else if ok {
		manifest, err := types.ParseAddress(prev.ManifestAddress)
		if err != nil {
			return types.Address{}, err
		}
		fmt.Fprintf(w, "\nAlready published at %s, skipping upload.\n", prev.CreatedAt.Format(time.RFC3339))
		if label != "" {
			if err := a.Repository.SetLabel(ctx, label, manifest); err != nil {
				return manifest, err
			}
		}
		return manifest, nil
	}

	// 4. 发布
	manifest, err := a.GetExporter().Publish(ctx, b, dm)
	if err != nil {
		return types.Address{}, err
	}

	// 5. 记录
	if a.Repository == nil {
		if label != "" {
			return manifest, errors.New("--label needs a catalog (set catalog.driver)")
		}
		return manifest, nil
	}
	_, err = a.Repository.RecordRun(ctx, meta.Run{
		InputDigest:     digest,
		InputSize:       int64(len(data)),
		Kind:            dm.Kind.String(),
		ChunkCount:      b.ChunkCount(),
		DataMapSize:     b.DataMapSize(),
		ManifestAddress: manifest,
		Addresses:       dm.Addresses(),
	})
	if err != nil {
		return manifest, err
	}
	if label != "" {
		if err := a.Repository.SetLabel(ctx, label, manifest); err != nil {
			return manifest, err
		}
	}
	return manifest, nil
}

// previousRun 查找同一输入的上一次发布记录
// 只有产生的 Chunk 地址完全一致 (引擎配置没变) 且清单仍在 Sink 中时才算命中
func previousRun(ctx context.Context, a *app.App, digest types.Address, dm core.DataMap) (*meta.RunRecord, bool, error) {
	if a.Repository == nil {
		return nil, false, nil
	}
	rec, err := a.Repository.FindByInputDigest(ctx, digest)
	if errors.Is(err, meta.ErrRunNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rec.ManifestAddress == "" || rec.Kind != dm.Kind.String() {
		return nil, false, nil
	}

	addrs, err := rec.ChunkAddresses()
	if err != nil {
		return nil, false, err
	}
	if !slices.Equal(addrs, dm.Addresses()) {
		return nil, false, nil
	}

	manifest, err := types.ParseAddress(rec.ManifestAddress)
	if err != nil {
		return nil, false, err
	}
	ok, err := a.Store.Has(ctx, manifest)
	if err != nil {
		return nil, false, err
	}
	return rec, ok, nil
}

// encryptRemote 通过 cv-server 执行同样的流程
func encryptRemote(ctx context.Context, w io.Writer, cli *client.CVClient, r io.Reader, label string) error {
	n, err := cli.Upload(ctx, r)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	scalars, err := cli.Bridge.SelfEncrypt(ctx, &cvrpc.SelfEncryptRequest{Length: n})
	if err != nil {
		return err
	}
	if code := pipeline.ExitCode(scalars.ExitCode); code != pipeline.ExitOK {
		return fmt.Errorf("self-encrypt failed on server (exit code %d)", code)
	}
	fmt.Fprintf(w, "Size:   %s\nChunks: %d\n", exporter.TidySize(int64(n)), scalars.ChunkCount)

	pub, err := cli.Bridge.Publish(ctx, &cvrpc.PublishRequest{Label: label})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nManifest: %s\n", pub.ManifestAddress)
	return nil
}

func init() {
	encryptCmd.Flags().StringVarP(&encryptLabel, "label", "l", "", "Record the manifest under this label")
	rootCmd.AddCommand(encryptCmd)
}
