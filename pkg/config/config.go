// Package config loads imgecho settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Name is the config file name, without extension.
const Name = "imgecho"

// Config holds configuration for imgecho.
type Config struct {
	InDirs []string `mapstructure:"in"`
	OutDir string   `mapstructure:"out"`

	// Format and Quality control exports.
	Format  string `mapstructure:"format"`
	Quality int    `mapstructure:"quality"`

	// Social lists preset keys to also export, fitted with FitMode.
	Social  []string `mapstructure:"social"`
	FitMode string   `mapstructure:"fit"`

	// Zip writes one archive per batch instead of one file per photo.
	Zip bool `mapstructure:"zip"`

	// Crop is an aspect ratio such as "16:9" to center-crop every photo to.
	Crop string `mapstructure:"crop"`

	Template string `mapstructure:"template"`
	Notes    string `mapstructure:"notes"`
	Logo     string `mapstructure:"logo"`
	FontPath string `mapstructure:"font"`

	// Exiftool is the exiftool binary. Empty uses the built-in reader.
	Exiftool string `mapstructure:"exiftool"`

	KeepOriginals bool `mapstructure:"keep_originals"`

	// StoreDir holds templates, logos and history between runs.
	// RedisURL, when set, is used instead.
	StoreDir string `mapstructure:"store_dir"`
	RedisURL string `mapstructure:"redis_url"`

	HistoryCapacity int           `mapstructure:"history_capacity"`
	SnapshotDelay   time.Duration `mapstructure:"snapshot_delay"`
	RefreshDelay    time.Duration `mapstructure:"refresh_delay"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Format:          "jpeg",
		Quality:         95,
		FitMode:         "cover",
		StoreDir:        "$HOME/.imgecho",
		HistoryCapacity: 50,
		SnapshotDelay:   500 * time.Millisecond,
		RefreshDelay:    50 * time.Millisecond,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("in", d.InDirs)
	v.SetDefault("out", d.OutDir)
	v.SetDefault("format", d.Format)
	v.SetDefault("quality", d.Quality)
	v.SetDefault("social", d.Social)
	v.SetDefault("fit", d.FitMode)
	v.SetDefault("zip", d.Zip)
	v.SetDefault("crop", d.Crop)
	v.SetDefault("template", d.Template)
	v.SetDefault("notes", d.Notes)
	v.SetDefault("logo", d.Logo)
	v.SetDefault("font", d.FontPath)
	v.SetDefault("exiftool", d.Exiftool)
	v.SetDefault("keep_originals", d.KeepOriginals)
	v.SetDefault("store_dir", d.StoreDir)
	v.SetDefault("redis_url", d.RedisURL)
	v.SetDefault("history_capacity", d.HistoryCapacity)
	v.SetDefault("snapshot_delay", d.SnapshotDelay)
	v.SetDefault("refresh_delay", d.RefreshDelay)
}

// Load reads imgecho.yaml from the first of paths that has one, falling
// back to "." and "$HOME/.imgecho". A missing file is not an error.
// IMGECHO_* environment variables override the file.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".", "$HOME/.imgecho"}
	}

	v := viper.New()
	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("IMGECHO")
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		klog.V(1).Infof("no %s config in %v, using defaults", Name, paths)
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if c.File != "" {
		klog.Infof("loaded config from %s", c.File)
	}
	return c, nil
}
