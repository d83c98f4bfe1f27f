package exporter

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"chunkvault/pkg/core"
	"chunkvault/pkg/types"
	"chunkvault/pkg/xorurl"
)

// PrintDataMap 打印 DataMap 概要和 Chunk 表 (序号、大小、短地址、URL)
func PrintDataMap(w io.Writer, dm core.DataMap, base xorurl.Base) error {
	fmt.Fprintf(w, "Kind:   %s\n", dm.Kind)
	fmt.Fprintf(w, "Size:   %s\n", TidySize(int64(dm.Len())))

	if dm.Kind != core.KindChunks {
		return nil
	}
	fmt.Fprintf(w, "Chunks: %d\n\n", len(dm.Chunks))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "INDEX\tSIZE\tNAME\tURL\n")
	for _, info := range dm.Chunks {
		url, err := xorurl.Encode(info.Address.Addr, base)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Index, TidySize(int64(info.SourceSize)), info.Address.Addr.Short(), url)
	}
	return tw.Flush()
}

// PrintObject 打印 Sink 中的一个对象：清单展开成表格，Chunk 只显示大小
func (e *Exporter) PrintObject(ctx context.Context, addr types.Address, w io.Writer, base xorurl.Base) error {
	data, err := e.readAll(ctx, addr)
	if err != nil {
		return err
	}

	// 如果解不出清单，说明是 Chunk (加密后的原始数据)
	dm, err := core.DecodeManifest(data)
	if err != nil {
		fmt.Fprintf(w, "Type: Chunk (Encrypted Data)\nSize: %s\n", TidySize(int64(len(data))))
		return nil
	}
	fmt.Fprintf(w, "Type:   Manifest\n")
	return PrintDataMap(w, dm, base)
}

// TidySize 把字节数换算成 B / KiB / MiB
func TidySize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.3f KiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.3f MiB", float64(n)/1024/1024)
	}
}
