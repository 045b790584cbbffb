package config

// mergePools merges built-in and user-defined pool configurations.
// User-defined pools override built-in pools with the same name.
func mergePools(builtinPools map[string]PoolConfig, userPools map[string]PoolConfig) map[string]*PoolConfig {
	result := make(map[string]*PoolConfig)

	for name, builtin := range builtinPools {
		poolCopy := builtin
		result[name] = &poolCopy
	}

	for name, userPool := range userPools {
		poolCopy := userPool
		result[name] = &poolCopy
	}

	return result
}

// mergeStages merges built-in and user-defined stage configurations.
// User-defined stages override built-in stages with the same name.
func mergeStages(builtinStages map[string]StageConfig, userStages map[string]StageConfig) map[string]*StageConfig {
	result := make(map[string]*StageConfig)

	for name, builtin := range builtinStages {
		stageCopy := builtin
		result[name] = &stageCopy
	}

	for name, userStage := range userStages {
		stageCopy := userStage
		result[name] = &stageCopy
	}

	return result
}

// mergeExtensions merges built-in and user-defined extension configurations.
// User-defined extensions override built-in extensions with the same name.
// There are no built-in extensions shipped by the core (they're all
// opt-in), but the merge keeps the same shape as pools/stages for
// consistency and future built-ins (e.g. the notifier extension).
func mergeExtensions(builtinExtensions map[string]ExtensionConfig, userExtensions map[string]ExtensionConfig) map[string]*ExtensionConfig {
	result := make(map[string]*ExtensionConfig)

	for name, builtin := range builtinExtensions {
		extCopy := builtin
		result[name] = &extCopy
	}

	for name, userExt := range userExtensions {
		extCopy := userExt
		result[name] = &extCopy
	}

	return result
}

// mergeEngines merges built-in and user-defined engine configurations.
// User-defined engines override built-in engines with the same name.
func mergeEngines(builtinEngines map[string]EngineConfig, userEngines map[string]EngineConfig) map[string]*EngineConfig {
	result := make(map[string]*EngineConfig)

	for name, builtin := range builtinEngines {
		engCopy := builtin
		result[name] = &engCopy
	}

	for name, userEngine := range userEngines {
		engCopy := userEngine
		result[name] = &engCopy
	}

	return result
}
