package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/annotate"
	"github.com/tstromberg/imgecho/pkg/batch"
	"github.com/tstromberg/imgecho/pkg/config"
	"github.com/tstromberg/imgecho/pkg/editor"
	"github.com/tstromberg/imgecho/pkg/exif"
	"github.com/tstromberg/imgecho/pkg/export"
	"github.com/tstromberg/imgecho/pkg/history"
	"github.com/tstromberg/imgecho/pkg/logo"
	"github.com/tstromberg/imgecho/pkg/render"
	"github.com/tstromberg/imgecho/pkg/store"
	"github.com/tstromberg/imgecho/pkg/template"
	"github.com/tstromberg/imgecho/pkg/transform"
)

var (
	configDir     = flag.String("config", "", "directory holding imgecho.yaml (default: . and $HOME/.imgecho)")
	inDirs        = flag.String("in", "", "comma-separated input directories")
	outDir        = flag.String("out", "", "output directory")
	format        = flag.String("format", "jpeg", fmt.Sprintf("output format: %v", export.Formats))
	quality       = flag.Int("quality", 95, "JPEG quality (0-100)")
	tmpl          = flag.String("template", "", "template id to style photos with")
	notes         = flag.String("notes", "", "notes line to add to every photo")
	logoPath      = flag.String("logo", "", "logo image to overlay")
	fontPath      = flag.String("font", "", "TTF font to render text with")
	crop          = flag.String("crop", "", "center-crop to an aspect ratio: "+strings.Join(transform.RatioNames(), ", "))
	social        = flag.String("social", "", "comma-separated social presets to also export")
	fit           = flag.String("fit", "cover", "social preset fit: cover, contain or fill")
	zipFlag       = flag.Bool("zip", false, "write ZIP archives instead of individual files")
	keepOriginals = flag.Bool("keep-originals", false, "copy source photos into the output directory")
	exiftoolPath  = flag.String("exiftool", "", "path to exiftool; empty uses the built-in EXIF reader")
	storeDir      = flag.String("store-dir", "", "directory to keep templates and logos in")
	redisURL      = flag.String("redis", "", "redis URL to keep templates and logos in")
	listTemplates = flag.Bool("list-templates", false, "list templates and exit")
	importFile    = flag.String("import-templates", "", "import templates from a JSON file")
	exportID      = flag.String("export-template", "", "print a template as JSON and exit")
	watchFlag     = flag.Bool("watch", false, "watch for changes to the input directories and rebuild")
)

// overrides copies flags given on the command line over the loaded config.
func overrides(c *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			c.InDirs = strings.Split(*inDirs, ",")
		case "out":
			c.OutDir = *outDir
		case "format":
			c.Format = *format
		case "quality":
			c.Quality = *quality
		case "template":
			c.Template = *tmpl
		case "notes":
			c.Notes = *notes
		case "logo":
			c.Logo = *logoPath
		case "font":
			c.FontPath = *fontPath
		case "crop":
			c.Crop = *crop
		case "social":
			c.Social = strings.Split(*social, ",")
		case "fit":
			c.FitMode = *fit
		case "zip":
			c.Zip = *zipFlag
		case "keep-originals":
			c.KeepOriginals = *keepOriginals
		case "exiftool":
			c.Exiftool = *exiftoolPath
		case "store-dir":
			c.StoreDir = *storeDir
		case "redis":
			c.RedisURL = *redisURL
		}
	})
}

func openStore(ctx context.Context, c *config.Config) (store.Store, func(), error) {
	if c.RedisURL != "" {
		rs, err := store.NewRedisStore(ctx, c.RedisURL, "imgecho:")
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	}
	fs, err := store.NewFileStore(os.ExpandEnv(c.StoreDir))
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func newSession(ctx context.Context, c *config.Config, st store.Store) (*editor.Session, func(), error) {
	var ex exif.Extractor
	cleanup := func() {}
	if c.Exiftool != "" {
		et, err := exif.NewExiftool(c.Exiftool)
		if err != nil {
			return nil, nil, fmt.Errorf("exiftool: %w", err)
		}
		ex = et
		cleanup = func() { et.Close() }
	}

	fm, err := render.NewFontManager(c.FontPath)
	if err != nil {
		return nil, nil, err
	}

	logos := logo.NewLibrary(st)
	if err := logos.Load(ctx); err != nil {
		klog.Warningf("logos: %v", err)
	}
	templates := template.NewManager(st)
	if err := templates.Load(ctx); err != nil {
		klog.Warningf("templates: %v", err)
	}

	s, err := editor.New(editor.Options{
		Renderer:     render.New(fm, nil),
		Queue:        batch.NewQueue(ex),
		History:      history.New(history.Options{Capacity: c.HistoryCapacity, Debounce: c.SnapshotDelay}),
		Logos:        logos,
		Templates:    templates,
		RefreshDelay: c.RefreshDelay,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return s, cleanup, nil
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx := context.Background()

	var paths []string
	if *configDir != "" {
		paths = append(paths, *configDir)
	}
	c, err := config.Load(paths...)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	overrides(&c)

	st, closeStore, err := openStore(ctx, &c)
	if err != nil {
		klog.Exitf("store: %v", err)
	}
	defer closeStore()

	s, cleanup, err := newSession(ctx, &c, st)
	if err != nil {
		klog.Exitf("session: %v", err)
	}
	defer cleanup()
	defer s.Close()

	if *importFile != "" {
		data, err := os.ReadFile(*importFile)
		if err != nil {
			klog.Exitf("read: %v", err)
		}
		ts, err := s.Templates().Import(ctx, data)
		if err != nil {
			klog.Exitf("import: %v", err)
		}
		klog.Infof("imported %d templates", len(ts))
	}

	if *listTemplates {
		for _, t := range s.Templates().All() {
			fmt.Printf("%-40s %s\n", t.ID, t.Name)
		}
		return
	}

	if *exportID != "" {
		b, err := s.Templates().Export(*exportID)
		if err != nil {
			klog.Exitf("export: %v", err)
		}
		fmt.Println(string(b))
		return
	}

	if len(c.InDirs) == 0 {
		klog.Exitf("--in is a required flag")
	}
	if c.OutDir == "" {
		klog.Exitf("--out is a required flag")
	}

	if _, err := annotate.Run(ctx, &c, s); err != nil {
		klog.Exitf("annotate failed: %v", err)
	}

	if err := s.History().Save(ctx, st); err != nil {
		klog.Warningf("saving history: %v", err)
	}

	if *watchFlag {
		if err := watch(ctx, &c, s); err != nil {
			klog.Exitf("watch failed: %v", err)
		}
	}
}

// watch watches the input directories for changes and re-runs the annotation.
func watch(ctx context.Context, c *config.Config, s *editor.Session) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	jobs, err := annotate.Plan(c)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	dirs := []string{}
	for _, d := range c.InDirs {
		if !annotate.Within(c.OutDir, d) {
			dirs = append(dirs, d)
		}
	}
	for _, j := range jobs {
		dirs = append(dirs, filepath.Dir(j.InPath))
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	klog.Infof("watching %d dirs ...", len(dirs))
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %v", event)
			if annotate.Within(c.OutDir, event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					klog.Infof("watching new dir %s", event.Name)
					if err := w.Add(event.Name); err != nil {
						klog.Errorf("watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !batch.IsImage(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if _, err := annotate.Run(ctx, c, s); err != nil {
					klog.Errorf("annotate failed: %v", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
