package ports

// AgentService installs zipwatch as a per-user login agent.
// Production code uses the maclaunchd or systemdunit adapter; tests use MockAgentService.
type AgentService interface {
	// UnitPath returns the path of the generated service definition.
	UnitPath() string

	// LogPath returns the path where the agent's output is written.
	LogPath() string

	// Install writes the service definition and loads it.
	Install(execPath, configPath string) error

	// Uninstall unloads the service and removes its definition.
	Uninstall() error

	// IsInstalled checks if the service definition exists.
	IsInstalled() bool

	// Status returns "running", "loaded", "not loaded" or "not installed".
	Status() string
}
