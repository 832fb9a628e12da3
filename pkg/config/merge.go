package config

// mergeSkills merges built-in and user-defined skill configurations.
// User-defined skills override built-in skills with the same name.
func mergeSkills(builtinSkills map[string]SkillConfig, userSkills map[string]SkillConfig) map[string]*SkillConfig {
	result := make(map[string]*SkillConfig)

	// First, add built-in skills
	for name, skill := range builtinSkills {
		skillCopy := skill
		// Defensive copies of slices to prevent shared state
		skillCopy.ReferenceFiles = append([]string(nil), skill.ReferenceFiles...)
		skillCopy.DependsOn = append([]string(nil), skill.DependsOn...)
		skillCopy.Tools = append([]string(nil), skill.Tools...)
		result[name] = &skillCopy
	}

	// Then, override with user-defined skills (or add new ones)
	for name, userSkill := range userSkills {
		skillCopy := userSkill
		result[name] = &skillCopy
	}

	return result
}

// mergeSquads merges built-in and user-defined squad configurations.
// User-defined squads override built-in squads with the same name.
func mergeSquads(builtinSquads map[string]SquadConfig, userSquads map[string]SquadConfig) map[string]*SquadConfig {
	result := make(map[string]*SquadConfig)

	for name, squad := range builtinSquads {
		squadCopy := squad
		result[name] = &squadCopy
	}

	for name, userSquad := range userSquads {
		squadCopy := userSquad
		result[name] = &squadCopy
	}

	return result
}

// mergePipelines merges built-in and user-defined pipeline templates.
// User-defined templates override built-in templates with the same name.
func mergePipelines(builtinPipelines map[string]PipelineConfig, userPipelines map[string]PipelineConfig) map[string]*PipelineConfig {
	result := make(map[string]*PipelineConfig)

	for name, pipeline := range builtinPipelines {
		pipelineCopy := pipeline
		result[name] = &pipelineCopy
	}

	for name, userPipeline := range userPipelines {
		pipelineCopy := userPipeline
		result[name] = &pipelineCopy
	}

	return result
}

// mergeTools converts user-defined tools to registry form. There are no
// built-in tools; the tools.yaml file is the single source.
func mergeTools(userTools map[string]ToolConfig) map[string]*ToolConfig {
	result := make(map[string]*ToolConfig, len(userTools))
	for name, tool := range userTools {
		toolCopy := tool
		result[name] = &toolCopy
	}
	return result
}
