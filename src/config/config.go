package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir    string `json:"data_dir"`    // 物流CSV数据目录
	ModelPath  string `json:"model_path"`  // 延误预测模型文件路径
	ReportPath string `json:"report_path"` // xlsx报表输出路径
	FillPolicy string `json:"fill_policy"` // zero | drop_row | propagate
	HTTPAddr   string `json:"http_addr"`

	LogName     string `json:"log_name"`
	LogMaxBytes int64  `json:"log_max_bytes"`

	RefreshInterval Duration `json:"refresh_interval"` // 数据刷新间隔

	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string `json:"server"` // SMTP服务器地址
		Username string `json:"username"`
		Password string `json:"password"`
		To       string `json:"to"`
		Subject  string `json:"subject"`
	} `json:"send_email"`
}

// Default 返回无需配置文件即可运行的默认配置
func Default() *Config {
	cfg := &Config{
		DataDir:         "data",
		ModelPath:       "delay_model.gob",
		ReportPath:      "delivery_report.xlsx",
		FillPolicy:      "zero",
		HTTPAddr:        ":8080",
		LogName:         "app.log",
		LogMaxBytes:     64 * 1024 * 1024,
		RefreshInterval: Duration(5 * time.Minute),
	}
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	return cfg
}

// LoadConfig 加载JSON配置文件，缺省字段使用默认值
func LoadConfig(jsonFolder, jsonFile string) (*Config, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)

	data, err := readFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析Config失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值受限的字段
func (c *Config) Validate() error {
	switch c.FillPolicy {
	case "zero", "drop_row", "propagate":
	default:
		return fmt.Errorf("invalid fill_policy %q (want zero | drop_row | propagate)", c.FillPolicy)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model_path must not be empty")
	}
	return nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
