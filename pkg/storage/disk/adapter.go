package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /home/user/.cv/objects
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回地址对应的物理路径
// 策略：使用前 2 个 Hex 字符作为子目录 (Sharding)
// Example: "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(addr types.Address) string {
	hex := addr.String()
	return filepath.Join(s.rootPath, hex[:2], hex[2:])
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	targetPath := s.layout(obj.ID())

	// 1. 检查是否存在 (幂等性)
	if _, err := os.Stat(targetPath); err == nil {
		return nil // 已经存在，直接跳过 (CAS 的好处)
	}

	// 2. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 3. 原子写入 (Atomic Write)
	// 先写到一个临时文件，然后 Rename。
	// 这样保证要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(obj.Bytes()); err != nil {
		tempFile.Close()
		return err
	}
	tempFile.Close() // 必须先关闭才能 Rename

	// 4. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, addr types.Address) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(addr))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, addr types.Address) (bool, error) {
	_, err := os.Stat(s.layout(addr))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExpandHash 在分片目录里查找唯一匹配前缀的对象
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.AddressPrefix) (types.Address, error) {
	p := strings.ToLower(prefix.String())
	if len(p) < 4 {
		return types.Address{}, fmt.Errorf("address prefix too short")
	}

	entries, err := os.ReadDir(filepath.Join(s.rootPath, p[:2]))
	if os.IsNotExist(err) {
		return types.Address{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Address{}, err
	}

	var match string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "temp-") || !strings.HasPrefix(name, p[2:]) {
			continue
		}
		if match != "" {
			return types.Address{}, storage.ErrAmbiguousHash
		}
		match = name
	}
	if match == "" {
		return types.Address{}, storage.ErrNotFound
	}
	return types.ParseAddress(p[:2] + match)
}
