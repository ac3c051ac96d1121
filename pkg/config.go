package ldf

import (
	"encoding/json"
	"os"
)

// Configuration holds the settings external to the core itself: which
// files to read, how many concurrent spills to buffer before a flush,
// and where the module configuration map comes from.
type Configuration struct {
	InputFiles          []string `json:"input_files"`
	NumConcurrentSpills int      `json:"num_concurrent_spills"`
	Verbosity           int      `json:"verbosity"`

	// ModuleConfigFile, when set, is a JSON file holding an array of
	// module entries, read by LoadModuleConfigFile. When empty, callers are expected to have
	// supplied a ModuleConfig map directly (e.g. from a database via
	// LoadModuleConfigFromDB).
	ModuleConfigFile string `json:"module_config_file"`

	DBHost string `json:"db_host"`
	DBUser string `json:"db_user"`
	DBPass string `json:"db_pass"`
	DBName string `json:"db_name"`
}

// LoadConfiguration reads a JSON configuration file, filling in
// defaults first so a partial file still produces a usable
// Configuration.
func LoadConfiguration(filename string) (Configuration, error) {
	config := Configuration{
		NumConcurrentSpills: 16,
		Verbosity:           0,
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, err
	}
	return config, nil
}
