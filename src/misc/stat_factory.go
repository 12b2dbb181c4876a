package misc

import (
	"fmt"
	"sort"
)

type StatFactory struct {
	name  string
	stats map[string]int64
}

func (this *StatFactory) Init(name string) {
	this.name = name
	this.stats = make(map[string]int64)
}

func (this *StatFactory) Name() string {
	return this.name
}

func (this *StatFactory) Increment(stat_name string, value int64) {
	if this.stats == nil {
		this.stats = make(map[string]int64)
	}

	this.stats[stat_name] += value
}

func (this *StatFactory) Value(stat_name string) int64 {
	return this.stats[stat_name]
}

func (this *StatFactory) Stats() map[string]int64 {
	stats := make(map[string]int64, len(this.stats))
	for k, v := range this.stats {
		stats[k] = v
	}
	return stats
}

// ToLines renders every stat as "<factory>_<stat>: <value>" sorted by stat
// name.
func (this *StatFactory) ToLines() []string {
	keys := make([]string, 0, len(this.stats))
	for key := range this.stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s_%s: %d", this.name, key, this.stats[key]))
	}
	return lines
}
