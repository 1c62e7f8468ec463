package main

import (
	"fmt"
	"os"
	"strings"

	"deepzoom/backend"
	"deepzoom/dzc"

	"github.com/spf13/viper"
)

// Conf is the full configuration of a run: the TOML file, DEEPZOOM_*
// environment variables and command line flags, in increasing priority.
type Conf struct {
	Output struct {
		Directory      string `mapstructure:"directory"`
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
		Progress       bool   `mapstructure:"progress"`
	} `mapstructure:"output"`
	Image struct {
		TileSize   int     `mapstructure:"tileSize"`
		Overlap    int     `mapstructure:"overlap"`
		Format     string  `mapstructure:"format"`
		Quality    int     `mapstructure:"quality"`
		Resample   string  `mapstructure:"resample"`
		Aspect     float64 `mapstructure:"aspect"`
		Background string  `mapstructure:"background"`
		XMLExt     bool    `mapstructure:"xmlExt"`
	} `mapstructure:"image"`
	Collection struct {
		Path       string `mapstructure:"path"`
		Start      int    `mapstructure:"start"`
		StartSet   bool   `mapstructure:"-"`
		MaxLevel   int    `mapstructure:"maxLevel"`
		TileSize   int    `mapstructure:"tileSize"`
		Background string `mapstructure:"background"`
		Catalog    bool   `mapstructure:"catalog"`
	} `mapstructure:"collection"`
	Log struct {
		Level string `mapstructure:"level"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"log"`
}

// confKeys lists every key so each can be overridden from the environment,
// including those without a default.
var confKeys = []string{
	"output.directory", "output.logDir", "output.outputTerminal", "output.progress",
	"image.tileSize", "image.overlap", "image.format", "image.quality", "image.resample",
	"image.aspect", "image.background", "image.xmlExt",
	"collection.path", "collection.start", "collection.maxLevel", "collection.tileSize",
	"collection.background", "collection.catalog",
	"log.level", "log.debug",
}

const envPrefix = "deepzoom"

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range confKeys {
		env := strings.ToUpper(envPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %v", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.directory", ".")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("output.progress", true)
	v.SetDefault("image.tileSize", DefaultTileSize)
	v.SetDefault("image.overlap", DefaultOverlap)
	v.SetDefault("image.format", JPG)
	v.SetDefault("image.quality", 90)
	v.SetDefault("image.resample", "Bilinear")
	v.SetDefault("image.background", "black")
	v.SetDefault("collection.maxLevel", DefaultMaxLevel)
	v.SetDefault("collection.tileSize", DefaultCollectionTileSize)
	v.SetDefault("collection.background", "black")
	v.SetDefault("log.level", "info")
}

// loadConf reads cfgFile when present. A missing file is only an error
// when the caller asked for it explicitly.
func loadConf(cfgFile string, explicit bool) (*Conf, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		path, err := expandPath(cfgFile)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if explicit {
				return nil, fmt.Errorf("config file(%s) not exist", path)
			}
		} else {
			v.SetConfigType("toml")
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file(%s) error, details: %v", path, err)
			}
		}
	}

	var conf Conf
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("parse config: %v", err)
	}
	conf.Collection.StartSet = v.IsSet("collection.start")
	return &conf, nil
}

// normalize expands paths and checks every value before any output is
// written.
func (conf *Conf) normalize() error {
	var err error
	if conf.Output.Directory, err = expandPath(conf.Output.Directory); err != nil {
		return err
	}
	if conf.Output.LogDir, err = expandPath(conf.Output.LogDir); err != nil {
		return err
	}
	if conf.Collection.Path, err = expandPath(conf.Collection.Path); err != nil {
		return err
	}
	conf.Image.Format = strings.ToLower(conf.Image.Format)

	if conf.Image.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", conf.Image.TileSize)
	}
	if conf.Image.Overlap < 0 {
		return fmt.Errorf("overlap must not be negative, got %d", conf.Image.Overlap)
	}
	if !isTileFormat(conf.Image.Format) {
		return fmt.Errorf("unsupported tile format '%s', want one of %s", conf.Image.Format, strings.Join(tileFormats, ", "))
	}
	if _, err := backend.ParseFormat(conf.Image.Format); err != nil {
		return err
	}
	if _, err := backend.Interpolation(conf.Image.Resample); err != nil {
		return err
	}
	if conf.Image.Aspect < 0 {
		return fmt.Errorf("aspect must not be negative, got %g", conf.Image.Aspect)
	}
	if _, err := backend.ParseColor(conf.Image.Background); err != nil {
		return err
	}
	if conf.Collection.Path != "" {
		if _, err := backend.ParseColor(conf.Collection.Background); err != nil {
			return err
		}
		spec := dzc.Spec{
			TileSize: conf.Collection.TileSize,
			MaxLevel: conf.Collection.MaxLevel,
			Start:    conf.Collection.Start,
		}
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}
