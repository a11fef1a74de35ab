package mission

const (
	DefaultWorkers    = 4
	DefaultFuzzyLimit = 20
)

type Config struct {
	Workers    int `split_words:"true" default:"4"`
	FuzzyLimit int `split_words:"true" default:"20"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.FuzzyLimit <= 0 {
		c.FuzzyLimit = DefaultFuzzyLimit
	}
	return c
}
