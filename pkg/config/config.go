package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

var exportMu sync.Mutex

type options struct {
	envFile string
}

type Option func(*options)

// WithEnvFile loads path instead of the -env argument or ./.env. The file
// must exist.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = strings.TrimSpace(path)
	}
}

func MustNew[T any](prefix string, opts ...Option) *T {
	conf, err := New[T](prefix, opts...)
	if err != nil {
		panic(err)
	}
	return conf
}

// New exports an env file into the process environment, then fills T from
// variables named PREFIX_FIELD. Variables already set are never overridden.
func New[T any](prefix string, opts ...Option) (*T, error) {
	o := options{envFile: envFileFromArgs(os.Args[1:])}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	path, required := o.envFile, true
	if path == "" {
		path, required = defaultEnvFile, false
	}
	if err := exportEnvFile(path, required); err != nil {
		return nil, err
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("process %s config: %w", displayPrefix(prefix), err)
	}
	return &conf, nil
}

func displayPrefix(prefix string) string {
	if prefix == "" {
		return "root"
	}
	return prefix
}

// envFileFromArgs finds -env/--env in either "-env path" or "-env=path" form.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		for _, name := range []string{"-env", "--env"} {
			if arg == name && i+1 < len(args) {
				return strings.TrimSpace(args[i+1])
			}
			if v, ok := strings.CutPrefix(arg, name+"="); ok {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func exportEnvFile(path string, required bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if info.IsDir() {
		if required {
			return fmt.Errorf("env file %s is a directory", path)
		}
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	exportMu.Lock()
	defer exportMu.Unlock()
	for _, k := range v.AllKeys() {
		key := strings.ToUpper(k)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, v.GetString(k)); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}
	return nil
}
