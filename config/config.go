// Package config loads the YAML file that selects the game, the value and
// policy functions and the search settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Game    string `yaml:"game" validate:"required"`
	Backend string `yaml:"backend"`

	// ValueFunction is used for both sides unless ValueFunctions is set.
	ValueFunction  string   `yaml:"value_function" validate:"required_without=ValueFunctions"`
	ValueFunctions []string `yaml:"value_functions" validate:"omitempty,len=2"`
	Value          Value    `yaml:"value"`

	PolicyFunction string `yaml:"policy_function"`
	Policy         Policy `yaml:"policy"`

	MCTS MCTS `yaml:"mcts"`

	// Threads is how many games are kept in flight and the worker pool size.
	Threads int   `yaml:"threads" validate:"gte=1,lte=4096"`
	Seed    int64 `yaml:"seed"`

	Onnx    Onnx    `yaml:"onnx"`
	Dataset Dataset `yaml:"dataset"`
	Server  Server  `yaml:"server"`
}

type Value struct {
	WinScore       float64 `yaml:"win_score" validate:"gte=0"`
	ExactTerminals bool    `yaml:"exact_terminals"`
	// BatchSize bounds one inference call.
	BatchSize int    `yaml:"batch_size" validate:"gte=1"`
	ModelPath string `yaml:"model_path"`
	Sessions  int    `yaml:"sessions" validate:"gte=1,lte=64"`
}

type Policy struct {
	PolicyFreedom float64 `yaml:"policy_freedom" validate:"gte=0"`
}

type MCTS struct {
	Simulations int     `yaml:"simulations" validate:"gte=1"`
	CPuct       float64 `yaml:"c_puct" validate:"gte=0"`
	// BatchSize is the number of leaves gathered before one evaluation.
	BatchSize   int           `yaml:"batch_size" validate:"gte=1"`
	Budget      time.Duration `yaml:"budget" validate:"gte=0"`
	Accelerated bool          `yaml:"accelerated"`
}

type Onnx struct {
	LibraryPath string `yaml:"library_path"`
	UseCUDA     bool   `yaml:"use_cuda"`
}

type Dataset struct {
	OutDir string `yaml:"out_dir"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

func Default() Config {
	return Config{
		Game:           "connect4",
		ValueFunction:  "random_rollout",
		PolicyFunction: "random",
		Value: Value{
			WinScore:       1000,
			ExactTerminals: false,
			BatchSize:      16,
			Sessions:       1,
		},
		MCTS: MCTS{
			Simulations: 200,
			CPuct:       1.4,
			BatchSize:   1,
			Accelerated: true,
		},
		Threads: 8,
		Seed:    1,
		Dataset: Dataset{OutDir: "data/selfplay"},
		Server:  Server{Addr: ":8080"},
	}
}

var validate = validator.New()

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		applyEnv(&cfg)
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ORT_SHARED_LIBRARY_PATH"); v != "" && cfg.Onnx.LibraryPath == "" {
		cfg.Onnx.LibraryPath = v
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, name := range c.SideValueFunctions() {
		if name == "network" && c.Value.ModelPath == "" {
			return errors.New("invalid config: value.model_path is required for the network value function")
		}
	}
	return nil
}

// SideValueFunctions returns the value function name for player 0 and 1.
func (c Config) SideValueFunctions() [2]string {
	if len(c.ValueFunctions) == 2 {
		return [2]string{c.ValueFunctions[0], c.ValueFunctions[1]}
	}
	return [2]string{c.ValueFunction, c.ValueFunction}
}
