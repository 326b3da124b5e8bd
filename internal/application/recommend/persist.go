package recommend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot 训练产物：模型权重、标签编码器与评分用的去重组合
type Snapshot struct {
	Model   *Model        `json:"model"`
	Titles  *LabelEncoder `json:"titles"`
	Casts   *LabelEncoder `json:"casts"`
	Genres  *LabelEncoder `json:"genres"`
	Triples []Sample      `json:"triples"`
}

// SaveSnapshot 将训练产物以 JSON 写入磁盘
func SaveSnapshot(path string, snap *Snapshot) error {
	if snap == nil || snap.Model == nil {
		return fmt.Errorf("snapshot is empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot 从磁盘读取训练产物，文件不存在时返回 (nil, nil)
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Model == nil || snap.Titles == nil || snap.Casts == nil || snap.Genres == nil {
		return nil, fmt.Errorf("snapshot at %s is incomplete", path)
	}
	return &snap, nil
}
