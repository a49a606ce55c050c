// Mgmt
// Copyright (C) James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// Config is the optional yaml config file of the compile command. Every field
// is overridden by the matching flag when that flag is set.
type Config struct {
	Format            string `yaml:"format"`
	Output            string `yaml:"output"`
	Metrics           string `yaml:"metrics"`
	DataThreshold     int    `yaml:"data-threshold"`
	MaxInlineDepth    int    `yaml:"max-inline-depth"`
	SimplifyBeforeSSA bool   `yaml:"simplify-before-ssa"`
	StateObject       string `yaml:"state-object"`
}

// ParseConfig parses the data of a config file.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, err
	}
	if config.Format != "" {
		if _, exists := formats[config.Format]; !exists {
			return nil, fmt.Errorf("unknown format `%s` in config", config.Format)
		}
	}
	if config.DataThreshold < 0 {
		return nil, fmt.Errorf("negative data-threshold in config")
	}
	if config.MaxInlineDepth < 0 {
		return nil, fmt.Errorf("negative max-inline-depth in config")
	}
	return &config, nil
}

// LoadConfig reads and parses a config file.
func LoadConfig(fs afero.Fs, filename string) (*Config, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}
