package config

// LoopConfig bounds the orchestration loop.
type LoopConfig struct {
	// MaxSteps is the hard step ceiling per session.
	MaxSteps int `yaml:"max_steps"`
	// StallLimit ends the session after this many consecutive steps that
	// changed no artifact. Zero disables stall detection.
	StallLimit int `yaml:"stall_limit"`
	// MaxArtifacts caps how many files one generator reply may carry.
	MaxArtifacts int `yaml:"max_artifacts"`
}

// AnalysisConfig configures the analyzer suite.
type AnalysisConfig struct {
	// Parallel runs analyzers concurrently.
	Parallel        bool `yaml:"parallel"`
	SchemaCacheSize int  `yaml:"schema_cache_size"`
	// FieldProps replaces the default list of props treated as field references.
	FieldProps []string `yaml:"field_props"`
}
