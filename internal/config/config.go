package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"true"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"keycards"`
}

type SignerConfig struct {
	Url     string `yaml:"url" env-default:""`
	Timeout int    `yaml:"timeout" env-default:"10"`
}

// SourceConfig describes one upstream campaign pool. ActivityUrls may
// list several equivalent entry pages; the client picks one per attempt
// to spread load.
type SourceConfig struct {
	Name            string   `yaml:"name"`
	Endpoint        string   `yaml:"endpoint"`
	LoginEndpoint   string   `yaml:"login_endpoint" env-default:""`
	Origin          string   `yaml:"origin" env-default:""`
	Referer         string   `yaml:"referer" env-default:""`
	ActivityUrls    []string `yaml:"activity_urls"`
	GundamId        int64    `yaml:"gundam_id"`
	InstanceId      string   `yaml:"instance_id"`
	CouponConfigIds string   `yaml:"coupon_config_ids"`
	JumppageType    int      `yaml:"jumppage_type" env-default:"8"`
	MaxRetries      int      `yaml:"max_retries" env-default:"2"`
	Timeout         int      `yaml:"timeout" env-default:"10"`
}

type SweepConfig struct {
	Schedule    string `yaml:"schedule" env-default:"0 8 * * *"`
	Concurrency int    `yaml:"concurrency" env-default:"4"`
	ReportUrl   string `yaml:"report_url" env-default:""`
}

type Config struct {
	Env        string         `yaml:"env" env-default:"local"`
	AdminToken string         `yaml:"admin_token" env-default:""`
	CodeLength int            `yaml:"code_length" env-default:"16"`
	Listen     Listen         `yaml:"listen"`
	Mongo      MongoConfig    `yaml:"mongo"`
	Signer     SignerConfig   `yaml:"signer"`
	Sources    []SourceConfig `yaml:"sources"`
	Sweep      SweepConfig    `yaml:"sweep"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
