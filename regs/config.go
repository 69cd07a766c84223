package regs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// boardConfigFile is the on-disk shape of a board-address override file, so
// a deployment targeting a board with a different register layout than
// DefaultBoardAddresses doesn't require a rebuild.
type boardConfigFile struct {
	VideoA     uint64 `yaml:"video_a"`
	VideoB     uint64 `yaml:"video_b"`
	Audio      uint64 `yaml:"audio"`
	VideoSize  int    `yaml:"video_size"`
	AudioSize  int    `yaml:"audio_size"`
	DevMemPath string `yaml:"dev_mem_path"`
}

// LoadBoardAddresses reads path as YAML and returns the BoardAddresses it
// describes. Any field left at its zero value falls back to
// DefaultBoardAddresses' corresponding field, so an override file only
// needs to name what differs from the default board.
func LoadBoardAddresses(path string) (BoardAddresses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BoardAddresses{}, fmt.Errorf("regs: read board config %s: %w", path, err)
	}

	var cfg boardConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BoardAddresses{}, fmt.Errorf("regs: parse board config %s: %w", path, err)
	}

	addrs := DefaultBoardAddresses
	if cfg.VideoA != 0 {
		addrs.VideoA = cfg.VideoA
	}
	if cfg.VideoB != 0 {
		addrs.VideoB = cfg.VideoB
	}
	if cfg.Audio != 0 {
		addrs.Audio = cfg.Audio
	}
	if cfg.VideoSize != 0 {
		addrs.VideoSize = cfg.VideoSize
	}
	if cfg.AudioSize != 0 {
		addrs.AudioSize = cfg.AudioSize
	}
	if cfg.DevMemPath != "" {
		addrs.DevMemPath = cfg.DevMemPath
	}
	return addrs, nil
}
