// Package config loads the hlsweep workspace and user configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cs217/hlsweep/log"
)

// EnvRoots are the environment settings the built-in profiles refer to.
// Each can be set in the environment or under `env:` in the config file;
// the environment wins.
var EnvRoots = []string{"AWS_HOME", "SRC_HOME", "CL_DIR", "CL_DESIGN_NAME"}

const configName = "hlsweep"

// Config is the merged configuration of a run.
type Config struct {
	// File is the config file that was read, empty if none was found.
	File         string
	Profile      string
	ProfileFiles []string
	Spinner      bool
	Env          map[string]string
}

// Environ returns the configured environment roots as KEY=VALUE pairs, for
// the tools started by a sweep.
func (c *Config) Environ() []string {
	result := []string{}
	for _, key := range EnvRoots {
		if value := c.Env[key]; value != "" {
			result = append(result, key+"="+value)
		}
	}
	return result
}

// Dir returns the user configuration directory.
func Dir() (string, error) {
	if dir, ok := os.LookupEnv("HLSWEEP_CONFIG_DIR"); ok {
		return dir, nil
	}
	if xdgConfigHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdgConfigHome, configName), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("unable to locate the configuration directory")
	}
	return filepath.Join(home, ".config", configName), nil
}

// Load reads the configuration. An explicit file must exist; otherwise
// hlsweep.yaml is looked up in the workspace root and then in the user
// configuration directory, and defaults are used when none is found.
func Load(root, file string) (*Config, error) {
	v := viper.New()
	v.SetDefault("profile", "")
	v.SetDefault("profile_files", []string{})
	v.SetDefault("spinner", true)
	for _, key := range EnvRoots {
		if err := v.BindEnv("env."+strings.ToLower(key), key); err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", key)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read configuration")
		}
		log.Debug("No configuration file found. Using default configuration.\n")
	}

	config := &Config{
		File:    v.ConfigFileUsed(),
		Profile: v.GetString("profile"),
		Spinner: v.GetBool("spinner"),
		Env:     map[string]string{},
	}
	for _, key := range EnvRoots {
		config.Env[key] = v.GetString("env." + strings.ToLower(key))
	}
	for _, f := range v.GetStringSlice("profile_files") {
		expanded, err := homedir.Expand(f)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid profile file '%s'", f)
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(root, expanded)
		}
		config.ProfileFiles = append(config.ProfileFiles, expanded)
	}
	if config.File != "" {
		log.Debug("Loaded configuration from '%s'.\n", config.File)
	}
	log.Debug("Running with configuration: %+v\n", *config)
	return config, nil
}
