package misc

import (
	"log/slog"
	"sync"
)

var (
	runtimeGeneration     = DefaultGeneration()
	runtimeLogLevel       = new(slog.LevelVar)
	runtimeGenerationLock sync.RWMutex
)

// SetRuntimeGeneration updates the global runtime generation.
func SetRuntimeGeneration(generation Generation) {
	runtimeGenerationLock.Lock()
	defer runtimeGenerationLock.Unlock()

	runtimeGeneration = generation
}

// RuntimeGeneration returns the currently configured generation.
func RuntimeGeneration() Generation {
	runtimeGenerationLock.RLock()
	defer runtimeGenerationLock.RUnlock()

	return runtimeGeneration
}

// SetRuntimeVerbose maps the verbose option onto the shared log level.
func SetRuntimeVerbose(verbose int) {
	runtimeLogLevel.Set(LevelForVerbose(verbose))
}

// RuntimeLogLevel is shared by every logger built with NewLogger.
func RuntimeLogLevel() *slog.LevelVar {
	return runtimeLogLevel
}
