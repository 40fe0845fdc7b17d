// Package config 加载配置文件与环境变量，并提供运行期可变的参数服务
package config

import (
	"errors"
	"fmt"
	"strings"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/TimeWtr/job_scheduler/repository/cache"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const envPrefix = "JOB_SCHEDULER"

const (
	CoordinatorGorm  = "gorm"
	CoordinatorRedis = "redis"
)

type EngineConfig struct {
	Name string `mapstructure:"name"`
	// InstanceID 节点的稳定标识，为空时随机生成(重启后随机延迟会变化)
	InstanceID string `mapstructure:"instance_id"`
	// Registered 节点是否已经注册到中心节点，由外部的注册流程维护
	Registered bool `mapstructure:"registered"`
}

// JobConfig 覆盖Job类型的默认配置，空值表示使用默认值
type JobConfig struct {
	Type                 string `mapstructure:"type"`
	Schedule             string `mapstructure:"schedule"`
	Startup              string `mapstructure:"startup"`
	RequiresRegistration *bool  `mapstructure:"requires_registration"`
}

type DatabaseConfig struct {
	// Driver sqlite或mysql
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// TracingConfig Job执行的链路追踪
type TracingConfig struct {
	// Exporter none只在进程内采样不导出，stdout输出到标准输出
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	Engine      EngineConfig         `mapstructure:"engine"`
	Jobs        map[string]JobConfig `mapstructure:"jobs"`
	Database    DatabaseConfig       `mapstructure:"database"`
	Redis       cache.Config         `mapstructure:"redis"`
	Coordinator string               `mapstructure:"coordinator"`
	HTTP        HTTPConfig           `mapstructure:"http"`
	Tracing     TracingConfig        `mapstructure:"tracing"`

	// GeneratedInstanceID 为true表示InstanceID是随机生成的
	GeneratedInstanceID bool `mapstructure:"-"`

	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.name", "default")
	v.SetDefault("engine.registered", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "job_scheduler.db")
	v.SetDefault("coordinator", CoordinatorGorm)
	v.SetDefault("http.address", ":8080")
	v.SetDefault("tracing.exporter", TraceExporterNone)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault(_const.ParamSynchronizeAllJobs, false)
	v.SetDefault(_const.ParamRandomMaxStartTimeMs, _const.DefaultMaxJitterMs)
	v.SetDefault(_const.ParamLongOperationThresholdMs, _const.DefaultLongOperationThresholdMs)
	v.SetDefault(_const.ParamEnforceRegistration, false)
}

// Load 读取配置文件，path为空时只使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Engine.InstanceID == "" {
		cfg.Engine.InstanceID = uuid.NewString()
		cfg.GeneratedInstanceID = true
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Coordinator {
	case CoordinatorGorm:
	case CoordinatorRedis:
		if c.Redis.Address == "" {
			return errors.New("redis coordinator requires redis.address")
		}
	default:
		return fmt.Errorf("unknown coordinator %q", c.Coordinator)
	}

	switch c.Tracing.Exporter {
	case TraceExporterNone, TraceExporterStdout:
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}

	for name, job := range c.Jobs {
		if job.Type != "" {
			if _, ok := _const.ParseScheduleType(job.Type); !ok {
				return fmt.Errorf("job %s: unknown schedule type %q", name, job.Type)
			}
		}
		if _, ok := _const.ParseStartupType(job.Startup); !ok {
			return fmt.Errorf("job %s: unknown startup type %q", name, job.Startup)
		}
	}
	return nil
}

// Definition 以Job类型的默认配置为基础，应用配置文件中的覆盖
func (c *Config) Definition(name string, defaults job_scheduler.JobDefaults) domain.JobDefinition {
	def := domain.JobDefinition{
		Name:                 name,
		ScheduleType:         defaults.ScheduleType,
		Schedule:             defaults.Schedule,
		StartupType:          defaults.StartupType,
		RequiresRegistration: defaults.RequiresRegistration,
	}
	if def.StartupType == 0 {
		def.StartupType = _const.StartupAutomatic
	}

	override, ok := c.Jobs[name]
	if !ok {
		return def
	}
	if t, ok := _const.ParseScheduleType(override.Type); ok && override.Type != "" {
		def.ScheduleType = t
	}
	if override.Schedule != "" {
		def.Schedule = override.Schedule
	}
	if override.Startup != "" {
		def.StartupType, _ = _const.ParseStartupType(override.Startup)
	}
	if override.RequiresRegistration != nil {
		def.RequiresRegistration = *override.RequiresRegistration
	}
	return def
}

// Parameters 运行期参数服务
func (c *Config) Parameters() *Parameters {
	return newParameters(c.v)
}
