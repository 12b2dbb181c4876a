package misc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ConfigLoader struct{}

type runtimeConfig struct {
	bankEntries     int
	bufferEntries   int
	channelCapacity int
	irqCycles       int
	fracBits        int
	partition       int
}

// fileConfig is the optional JSON overlay named by --config_path. Absent
// keys keep their command-line or default values.
type fileConfig struct {
	BankEntries     *int `json:"bank_entries"`
	BufferEntries   *int `json:"buffer_entries"`
	ChannelCapacity *int `json:"channel_capacity"`
	IrqCycles       *int `json:"irq_cycles"`
	FracBits        *int `json:"frac_bits"`
	Partition       *int `json:"partition"`
}

var globalConfig = defaultRuntimeConfig()

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		bankEntries:     4096,
		bufferEntries:   4096,
		channelCapacity: 4,
		irqCycles:       10,
		fracBits:        -1,
		partition:       0x33,
	}
}

// ConfigureRuntime copies the parsed options into the runtime configuration
// and applies the JSON overlay if one is given.
func ConfigureRuntime(parser *CommandLineParser) {
	if generation, ok := GenerationFromString(parser.StringParameter("generation")); ok {
		SetRuntimeGeneration(generation)
	}
	SetRuntimeVerbose(int(parser.IntParameter("verbose")))

	globalConfig = defaultRuntimeConfig()
	globalConfig.fracBits = int(parser.IntParameter("frac_bits"))
	globalConfig.irqCycles = int(parser.IntParameter("irq_cycles"))

	rawConfigPath := parser.StringParameter("config_path")
	if configPath := resolveConfigPath(rawConfigPath, parser.StringParameter("root_dirpath")); configPath != "" {
		if err := globalConfig.overlay(configPath); err != nil {
			panic(err)
		}
	}
}

func (this *runtimeConfig) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var file fileConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	apply := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&this.bankEntries, file.BankEntries)
	apply(&this.bufferEntries, file.BufferEntries)
	apply(&this.channelCapacity, file.ChannelCapacity)
	apply(&this.irqCycles, file.IrqCycles)
	apply(&this.fracBits, file.FracBits)
	apply(&this.partition, file.Partition)
	return nil
}

func (this *ConfigLoader) Init() {}

func (this *ConfigLoader) NumLanes() int {
	return 16
}

func (this *ConfigLoader) NumBanks() int {
	return 16
}

func (this *ConfigLoader) BankEntries() int {
	return globalConfig.bankEntries
}

func (this *ConfigLoader) NumMemories() int {
	return 4
}

func (this *ConfigLoader) BufferEntries() int {
	return globalConfig.bufferEntries
}

func (this *ConfigLoader) ChannelCapacity() int {
	return globalConfig.channelCapacity
}

func (this *ConfigLoader) IrqCycles() int {
	return globalConfig.irqCycles
}

// FracBits is negative when the generation default applies.
func (this *ConfigLoader) FracBits() int {
	return globalConfig.fracBits
}

func (this *ConfigLoader) Generation() Generation {
	return RuntimeGeneration()
}

// Partition is the top byte of host AXI addresses that selects this core.
func (this *ConfigLoader) Partition() int {
	return globalConfig.partition
}

func resolveConfigPath(configPath, rootDir string) string {
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		return ""
	}

	if filepath.IsAbs(configPath) {
		return filepath.Clean(configPath)
	}

	candidates := make([]string, 0, 4)
	if root := strings.TrimSpace(rootDir); root != "" {
		candidates = append(candidates, filepath.Join(root, configPath))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, configPath))
	}

	for _, candidate := range candidates {
		cleaned := filepath.Clean(candidate)
		if info, err := os.Stat(cleaned); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(cleaned); err == nil {
				return abs
			}
			return cleaned
		}
	}

	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}
