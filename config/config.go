package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Sources はデータディレクトリからの各出典ファイルの相対パスです。
type Sources struct {
	Codes             string `yaml:"codes" json:"codes"`
	Population        string `yaml:"population" json:"population"`
	AgeGroups         string `yaml:"age_groups" json:"age_groups"`
	FinanceSummary    string `yaml:"finance_summary" json:"finance_summary"`
	FinanceSettlement string `yaml:"finance_settlement" json:"finance_settlement"`
	MyNumber          string `yaml:"mynumber" json:"mynumber"`
	DXComparison      string `yaml:"dx_comparison" json:"dx_comparison"`
	DXOnline          string `yaml:"dx_online" json:"dx_online"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type ExportConfig struct {
	CSVPath    string `yaml:"csv_path" json:"csv_path"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// FetchTarget は公表ページからダウンロードする1ファイルの設定です。
type FetchTarget struct {
	Name     string `yaml:"name" json:"name"`
	PageURL  string `yaml:"page_url" json:"page_url"`
	LinkText string `yaml:"link_text" json:"link_text"` // リンク文字列の正規表現
	Dest     string `yaml:"dest" json:"dest"`           // data_dir からの相対パス
}

type FetchConfig struct {
	SaveDir  string        `yaml:"save_dir" json:"save_dir"`
	Headless bool          `yaml:"headless" json:"headless"`
	Targets  []FetchTarget `yaml:"targets" json:"targets"`
}

type Config struct {
	DataDir     string       `yaml:"data_dir" json:"data_dir"`
	Sources     Sources      `yaml:"sources" json:"sources"`
	CSVEncoding string       `yaml:"csv_encoding" json:"csv_encoding"`
	LogLevel    string       `yaml:"log_level" json:"log_level"`
	Server      ServerConfig `yaml:"server" json:"server"`
	Export      ExportConfig `yaml:"export" json:"export"`
	Fetch       FetchConfig  `yaml:"fetch" json:"fetch"`
}

var (
	cfg = DefaultConfig()
	mu  sync.RWMutex

	configFilePath = "./jichitai.yaml"
)

// DefaultConfig は設定ファイルがない場合の既定値です。
func DefaultConfig() Config {
	return Config{
		DataDir: "data/source",
		Sources: Sources{
			Codes:             "codes/municipal_codes.xlsx",
			Population:        "population/r06_municipal_population.xlsx",
			AgeGroups:         "population/r06_age_group_population.xlsx",
			FinanceSummary:    "finance/r05_finance_summary.xlsx",
			FinanceSettlement: "finance/r05_settlement.xlsx",
			MyNumber:          "mynumber/mynumber_card_r0708.xlsx",
			DXComparison:      "dx/dx_comparison.xlsx",
			DXOnline:          "dx/dx_online_procedures.xlsx",
		},
		CSVEncoding: "auto",
		LogLevel:    "info",
		Server:      ServerConfig{Addr: ":8080"},
		Export: ExportConfig{
			CSVPath:    "municipalities.csv",
			SQLitePath: "municipalities.db",
		},
		Fetch: FetchConfig{
			SaveDir:  "downloads",
			Headless: true,
		},
	}
}

// SetPath は設定ファイルのパスを変更します。
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFilePath = path
}

// Path は現在の設定ファイルのパスです。
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configFilePath
}

// LoadConfig は設定ファイルを読み込みます。ファイルがなければ既定値を使います。
// どちらの場合も環境変数による上書きを適用します。
func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	loaded := DefaultConfig()
	file, err := os.ReadFile(configFilePath)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configFilePath, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(file, &loaded); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", configFilePath, err)
		}
	}
	loaded.applyEnvOverrides()
	loaded.applyDefaults()
	cfg = loaded
	return cfg, nil
}

// SaveConfig は設定を保存し、現在の設定として反映します。
func SaveConfig(newCfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	newCfg.applyDefaults()
	file, err := yaml.Marshal(newCfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(configFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(configFilePath, file, 0644); err != nil {
		return err
	}
	cfg = newCfg
	return nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("JICHITAI_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("JICHITAI_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("JICHITAI_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("JICHITAI_CSV_ENCODING"); v != "" {
		c.CSVEncoding = strings.ToLower(v)
	}
}

// applyDefaults は空欄の項目を既定値で埋めます。
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.CSVEncoding == "" {
		c.CSVEncoding = def.CSVEncoding
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Export.CSVPath == "" {
		c.Export.CSVPath = def.Export.CSVPath
	}
	if c.Export.SQLitePath == "" {
		c.Export.SQLitePath = def.Export.SQLitePath
	}
	if c.Fetch.SaveDir == "" {
		c.Fetch.SaveDir = def.Fetch.SaveDir
	}
}

// SourcePath はデータディレクトリと相対パスを結合します。相対パスが空なら空文字です。
func (c Config) SourcePath(rel string) string {
	if rel == "" {
		return ""
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.DataDir, rel)
}
