package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"` // websocket 快照推送周期
	StreamRate   float64       `mapstructure:"streamRate"`   // websocket 升级限速（次/秒）
	StreamBurst  int           `mapstructure:"streamBurst"`
}

// SerialConfig 串口传输配置；port 为空表示直接使用仿真
type SerialConfig struct {
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baudRate"`
	DeviceID string `mapstructure:"deviceId"`
}

// BandConfig 单个频段的频率范围（Hz）
type BandConfig struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

// BandsConfig 五个经典脑电频段
type BandsConfig struct {
	Delta BandConfig `mapstructure:"delta"`
	Theta BandConfig `mapstructure:"theta"`
	Alpha BandConfig `mapstructure:"alpha"`
	Beta  BandConfig `mapstructure:"beta"`
	Gamma BandConfig `mapstructure:"gamma"`
}

// AcquisitionConfig 采集与频谱分析参数
type AcquisitionConfig struct {
	SampleRate          float64     `mapstructure:"sampleRate"`
	WindowSize          int         `mapstructure:"windowSize"`
	Overlap             int         `mapstructure:"overlap"`
	MeditationThreshold float64     `mapstructure:"meditationThreshold"`
	Epsilon             float64     `mapstructure:"epsilon"`
	Damping             float64     `mapstructure:"damping"`
	Vref                float64     `mapstructure:"vref"`
	Gain                float64     `mapstructure:"gain"`
	Bands               BandsConfig `mapstructure:"bands"`
}

// SimulationConfig 仿真引擎参数
type SimulationConfig struct {
	TickInterval    time.Duration `mapstructure:"tickInterval"`
	DecayFactor     float64       `mapstructure:"decayFactor"`
	Smoothing       float64       `mapstructure:"smoothing"`
	Saturation      float64       `mapstructure:"saturation"`
	MotionThreshold float64       `mapstructure:"motionThreshold"`
	JitterAmplitude float64       `mapstructure:"jitterAmplitude"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 EEG_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = v.GetString("EEG_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	// 默认值
	setDefaults(v)

	// 环境变量覆盖：前缀 EEG_，并将点号替换为下划线
	v.SetEnvPrefix("EEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if fmt.Sprintf("%T", err) != fmt.Sprintf("%T", notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eeg-server")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.pollInterval", "250ms")
	v.SetDefault("http.streamRate", 5.0)
	v.SetDefault("http.streamBurst", 10)

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baudRate", 57600)
	v.SetDefault("serial.deviceId", "000000")

	v.SetDefault("acquisition.sampleRate", 256.0)
	v.SetDefault("acquisition.windowSize", 512)
	v.SetDefault("acquisition.overlap", 256)
	v.SetDefault("acquisition.meditationThreshold", 0.85)
	v.SetDefault("acquisition.epsilon", 0.001)
	v.SetDefault("acquisition.damping", 0.8)
	v.SetDefault("acquisition.vref", 2.4)
	v.SetDefault("acquisition.gain", 6.0)
	v.SetDefault("acquisition.bands.delta.low", 0.5)
	v.SetDefault("acquisition.bands.delta.high", 4.0)
	v.SetDefault("acquisition.bands.theta.low", 4.0)
	v.SetDefault("acquisition.bands.theta.high", 8.0)
	v.SetDefault("acquisition.bands.alpha.low", 8.0)
	v.SetDefault("acquisition.bands.alpha.high", 14.0)
	v.SetDefault("acquisition.bands.beta.low", 14.0)
	v.SetDefault("acquisition.bands.beta.high", 30.0)
	v.SetDefault("acquisition.bands.gamma.low", 30.0)
	v.SetDefault("acquisition.bands.gamma.high", 40.0)

	v.SetDefault("simulation.tickInterval", "100ms")
	v.SetDefault("simulation.decayFactor", 0.96)
	v.SetDefault("simulation.smoothing", 0.85)
	v.SetDefault("simulation.saturation", 30.0)
	v.SetDefault("simulation.motionThreshold", 0.3)
	v.SetDefault("simulation.jitterAmplitude", 2.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/eeg-server.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
