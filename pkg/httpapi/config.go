package httpapi

import "time"

type Config struct {
	Address         string        `split_words:"true" default:":8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"180s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}
