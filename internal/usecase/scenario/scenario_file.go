package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"txflow/internal/transactional"
)

type unitConfig struct {
	Name        string       `toml:"name" yaml:"name"`
	Propagation string       `toml:"propagation" yaml:"propagation"`
	Isolation   string       `toml:"isolation" yaml:"isolation"`
	DataSource  string       `toml:"data_source" yaml:"data_source"`
	Message     string       `toml:"message" yaml:"message"`
	Fail        bool         `toml:"fail" yaml:"fail"`
	Recover     bool         `toml:"recover" yaml:"recover"`
	Units       []unitConfig `toml:"units" yaml:"units"`
}

type scenarioConfig struct {
	Version int          `toml:"version" yaml:"version"`
	Name    string       `toml:"name" yaml:"name"`
	Units   []unitConfig `toml:"units" yaml:"units"`
}

// Scenario is a tree of units. Each unit runs under its own propagation, optionally writes a
// post, runs its children in order, and then fails if asked to.
type Scenario struct {
	Name  string
	Units []Unit
}

// Unit is one node of a scenario. Recover makes the parent swallow the unit's error.
// A nil Propagation or Isolation leaves the manager's configured default in place.
type Unit struct {
	Name        string
	Message     string
	Fail        bool
	Recover     bool
	Propagation *transactional.Propagation
	Isolation   *transactional.Isolation
	DataSource  string
	Units       []Unit
}

func (u Unit) options() []transactional.Option {
	var opts []transactional.Option
	if u.Propagation != nil {
		opts = append(opts, transactional.WithPropagation(*u.Propagation))
	}
	if u.Isolation != nil {
		opts = append(opts, transactional.WithIsolation(*u.Isolation))
	}
	if u.DataSource != "" {
		opts = append(opts, transactional.WithDataSource(u.DataSource))
	}
	return opts
}

// LoadFile reads a scenario; .yaml and .yml files are YAML, anything else TOML.
func LoadFile(path string) (Scenario, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Scenario{}, errors.New("scenario file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw)
	default:
		return Parse(raw)
	}
}

// Parse reads a TOML scenario.
func Parse(raw []byte) (Scenario, error) {
	var cfg scenarioConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Scenario{}, err
	}
	return build(cfg)
}

func ParseYAML(raw []byte) (Scenario, error) {
	var cfg scenarioConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Scenario{}, err
	}
	return build(cfg)
}

func build(cfg scenarioConfig) (Scenario, error) {
	if cfg.Version != 1 {
		return Scenario{}, errors.New("unsupported scenario version: expected version = 1")
	}
	if len(cfg.Units) == 0 {
		return Scenario{}, errors.New("scenario has no units")
	}

	units, err := buildUnits(cfg.Units, "units")
	if err != nil {
		return Scenario{}, err
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "scenario"
	}
	return Scenario{Name: name, Units: units}, nil
}

func buildUnits(cfgs []unitConfig, path string) ([]Unit, error) {
	units := make([]Unit, 0, len(cfgs))
	for i, cfg := range cfgs {
		at := fmt.Sprintf("%s[%d]", path, i)

		var propagation *transactional.Propagation
		if strings.TrimSpace(cfg.Propagation) != "" {
			p, err := transactional.ParsePropagation(cfg.Propagation)
			if err != nil {
				return nil, fmt.Errorf("%s.propagation: %w", at, err)
			}
			propagation = &p
		}
		var isolation *transactional.Isolation
		if strings.TrimSpace(cfg.Isolation) != "" {
			iso, err := transactional.ParseIsolation(cfg.Isolation)
			if err != nil {
				return nil, fmt.Errorf("%s.isolation: %w", at, err)
			}
			isolation = &iso
		}
		children, err := buildUnits(cfg.Units, at+".units")
		if err != nil {
			return nil, err
		}

		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			name = at
		}
		units = append(units, Unit{
			Name:        name,
			Message:     strings.TrimSpace(cfg.Message),
			Fail:        cfg.Fail,
			Recover:     cfg.Recover,
			Propagation: propagation,
			Isolation:   isolation,
			DataSource:  strings.TrimSpace(cfg.DataSource),
			Units:       children,
		})
	}
	return units, nil
}
