package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

// Application is the immutable configuration snapshot threaded into the
// service constructors. It is never consulted as a process-wide singleton, so
// tests can run several configurations side by side.
type Application struct {
	Server Server `koanf:"server"`
	Fetch  Fetch  `koanf:"fetch"`
	Feeds  []Feed `koanf:"feeds"`
}

type Server struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type Fetch struct {
	// TimeoutSeconds bounds a single calendar source retrieval.
	TimeoutSeconds int `koanf:"timeoutseconds"`
	// CacheTTLSeconds is how long a fetched calendar body stays cached.
	CacheTTLSeconds int `koanf:"cachettlseconds"`
}

// Feed is one logical feed: a name, a token pair and the calendar sources
// merged into it.
type Feed struct {
	Name      string     `koanf:"name"`
	Tokens    Tokens     `koanf:"tokens"`
	Calendars []Calendar `koanf:"calendars"`
}

type Tokens struct {
	// Private grants full event details.
	Private string `koanf:"private"`
	// Public grants free-busy information only.
	Public string `koanf:"public"`
}

type Calendar struct {
	URL string `koanf:"url"`
}

// FeedByToken finds the feed matching either of its tokens.
func (a Application) FeedByToken(token string) (Feed, bool) {
	for _, feed := range a.Feeds {
		if feed.Tokens.Private == token || feed.Tokens.Public == token {
			return feed, true
		}
	}
	return Feed{}, false
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Fetch: Fetch{
			TimeoutSeconds:  15,
			CacheTTLSeconds: 60,
		},
	}, "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "ICALIADA_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "ICALIADA_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
