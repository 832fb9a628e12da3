package config

// ToolProviderType defines how a tool's actions are executed
type ToolProviderType string

const (
	// ToolProviderStub returns a canned JSON metadata blob (no external call)
	ToolProviderStub ToolProviderType = "stub"
	// ToolProviderMCP delegates to an MCP server
	ToolProviderMCP ToolProviderType = "mcp"
	// ToolProviderREST calls a REST endpoint
	ToolProviderREST ToolProviderType = "rest"
)

// IsValid checks if the tool provider type is valid
func (t ToolProviderType) IsValid() bool {
	return t == ToolProviderStub || t == ToolProviderMCP || t == ToolProviderREST
}

// QueueBackendType selects the queue adapter implementation
type QueueBackendType string

const (
	// QueueBackendMemory keeps jobs in process memory
	QueueBackendMemory QueueBackendType = "memory"
	// QueueBackendRedis stores jobs in Redis lists, one per priority
	QueueBackendRedis QueueBackendType = "redis"
)

// IsValid checks if the queue backend type is valid
func (t QueueBackendType) IsValid() bool {
	return t == QueueBackendMemory || t == QueueBackendRedis
}

// ReviewMode selects how the review engine scores an output
type ReviewMode string

const (
	// ReviewModeStructural scores with local heuristics only (no RPC)
	ReviewModeStructural ReviewMode = "structural"
	// ReviewModeSemantic asks the model to score, falling back to structural
	ReviewModeSemantic ReviewMode = "semantic"
)

// IsValid checks if the review mode is valid
func (m ReviewMode) IsValid() bool {
	return m == ReviewModeStructural || m == ReviewModeSemantic
}
