package config

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/gommon/log"
)

type Config struct {
	HttpPort          int           `envconfig:"HTTP_PORT" default:"3000"`
	AllowOrigins      string        `envconfig:"ALLOW_ORIGINS" default:"http://localhost:5173"`
	PendingTimeout    time.Duration `envconfig:"PENDING_TIMEOUT" default:"10s"`
	DisconnectTimeout time.Duration `envconfig:"DISCONNECT_TIMEOUT" default:"60s"`
	MaxWorkers        int           `envconfig:"MAX_WORKERS" default:"64"`
}

var (
	c    Config
	once sync.Once
)

func Get() *Config {
	once.Do(func() {
		err := envconfig.Process("", &c)
		if err != nil {
			log.Fatal(err)
		}
	})
	return &c
}
