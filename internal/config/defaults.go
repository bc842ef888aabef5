package config

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultConfigFile is the config file looked up in the project path
	DefaultConfigFile = "btp.yaml"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "last-run.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".btp"
	// DefaultLaunchFile is the default debug launch profile file
	DefaultLaunchFile = ".vscode/launch.json"
	// DefaultProcessors is the default number of parallel discoveries
	DefaultProcessors = 4
)
