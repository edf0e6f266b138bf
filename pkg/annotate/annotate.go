// Package annotate writes annotated copies of a directory tree of photos.
package annotate

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/tstromberg/imgecho/pkg/batch"
	"github.com/tstromberg/imgecho/pkg/config"
	"github.com/tstromberg/imgecho/pkg/editor"
	"github.com/tstromberg/imgecho/pkg/export"
	"github.com/tstromberg/imgecho/pkg/history"
	"github.com/tstromberg/imgecho/pkg/layout"
	"github.com/tstromberg/imgecho/pkg/meta"
	"github.com/tstromberg/imgecho/pkg/transform"
)

// OriginalsDir is where -keep-originals copies source files, under OutDir.
const OriginalsDir = "_originals"

// Job is one photo to annotate.
type Job struct {
	InPath  string
	RelPath string
	OutPath string
}

// Summary counts what Run did.
type Summary struct {
	Written int
	Skipped int
	Failed  int
}

// Within reports whether path is dir or lies below it.
func Within(dir, path string) bool {
	if dir == "" {
		return false
	}
	da, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	pa, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(da, pa)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Plan lists the photos under c.InDirs and where their output goes. With
// more than one input directory, outputs are grouped by directory name.
// Photos under OutDir are never inputs.
func Plan(c *config.Config) ([]Job, error) {
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}

	jobs := []Job{}
	for _, dir := range c.InDirs {
		paths, err := batch.FindImages(dir)
		if err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		for _, p := range paths {
			if c.OutDir != "" && Within(c.OutDir, p) {
				continue
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return nil, fmt.Errorf("rel: %w", err)
			}
			if len(c.InDirs) > 1 {
				rel = filepath.Join(filepath.Base(filepath.Clean(dir)), rel)
			}
			jobs = append(jobs, Job{
				InPath:  p,
				RelPath: rel,
				OutPath: filepath.Join(c.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))+f.Ext()),
			})
		}
	}
	klog.V(1).Infof("planned %d jobs", len(jobs))
	return jobs, nil
}

// stale reports whether out is missing or older than in.
func stale(in, out string) bool {
	sst, err := os.Stat(in)
	if err != nil {
		return true
	}
	dst, err := os.Stat(out)
	if err != nil {
		klog.V(1).Infof("updating %s: does not exist", out)
		return true
	}
	if sst.ModTime().After(dst.ModTime()) {
		klog.Infof("updating %s: source newer", out)
		return true
	}
	return false
}

// Run annotates every stale photo in c.InDirs into c.OutDir using s.
// Zip mode always rewrites everything.
func Run(ctx context.Context, c *config.Config, s *editor.Session) (Summary, error) {
	var sum Summary
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return sum, err
	}
	ratio := 0.0
	if c.Crop != "" {
		r, ok := transform.Ratios[c.Crop]
		if !ok {
			return sum, fmt.Errorf("unknown crop ratio %q, want one of %s", c.Crop, strings.Join(transform.RatioNames(), ", "))
		}
		ratio = r
	}

	jobs, err := Plan(c)
	if err != nil {
		return sum, err
	}
	todo := []Job{}
	for _, j := range jobs {
		if c.Zip || stale(j.InPath, j.OutPath) {
			todo = append(todo, j)
		}
	}
	sum.Skipped = len(jobs) - len(todo)
	if len(todo) == 0 {
		klog.Infof("all %d photos are up to date", len(jobs))
		return sum, nil
	}

	if err := setup(ctx, c, s); err != nil {
		return sum, err
	}

	opts := export.Options{Format: f, Quality: c.Quality}
	for n := 0; n*batch.MaxItems < len(todo); n++ {
		chunk := todo[n*batch.MaxItems : min((n+1)*batch.MaxItems, len(todo))]
		if err := runChunk(ctx, c, s, chunk, n, ratio, opts, &sum); err != nil {
			return sum, err
		}
	}

	if c.KeepOriginals {
		for _, j := range todo {
			dest := filepath.Join(c.OutDir, OriginalsDir, j.RelPath)
			if err := copy.Copy(j.InPath, dest); err != nil {
				return sum, fmt.Errorf("copy: %w", err)
			}
		}
	}

	klog.Infof("wrote %d, skipped %d, failed %d", sum.Written, sum.Skipped, sum.Failed)
	return sum, nil
}

// setup applies the template and logo named in c to the session.
func setup(ctx context.Context, c *config.Config, s *editor.Session) error {
	if c.Template != "" && !s.ApplyTemplate(c.Template) {
		return fmt.Errorf("unknown template %q", c.Template)
	}
	if c.Logo == "" || s.Logos() == nil {
		return nil
	}

	name := filepath.Base(c.Logo)
	for _, lg := range s.Logos().List() {
		if lg.Name == name {
			s.SelectLogo(lg.ID)
			return nil
		}
	}
	data, err := os.ReadFile(c.Logo)
	if err != nil {
		return fmt.Errorf("read logo: %w", err)
	}
	lg, err := s.Logos().Add(ctx, name, mime.TypeByExtension(strings.ToLower(filepath.Ext(c.Logo))), data)
	if err != nil {
		return fmt.Errorf("logo: %w", err)
	}
	s.SelectLogo(lg.ID)
	return nil
}

// prepare applies the per-photo edits to the current item.
func prepare(c *config.Config, s *editor.Session, ratio float64) {
	if c.Notes != "" {
		s.Update(history.KindMetadata, func(r *meta.Record) { r.Notes = c.Notes })
	}
	if ratio > 0 && s.EnterCrop() {
		s.Transform().SetAspectRatio(ratio)
		s.Transform().ApplyCrop()
	}
}

func runChunk(ctx context.Context, c *config.Config, s *editor.Session, chunk []Job, n int, ratio float64, opts export.Options, sum *Summary) error {
	q := s.Queue()
	q.Clear()

	srcs := make([]batch.Source, len(chunk))
	byPath := map[string]Job{}
	for i, j := range chunk {
		srcs[i] = batch.Source{Name: filepath.Base(j.InPath), Path: j.InPath}
		byPath[j.InPath] = j
	}
	res, err := q.Add(ctx, srcs)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := res.Err(); err != nil {
		klog.Warning(err)
	}
	sum.Failed += len(res.Failed)
	q.Wait()

	for i, it := range q.Items() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.Select(i) {
			continue
		}
		prepare(c, s, ratio)
		if c.Zip {
			continue
		}

		j := byPath[it.Path]
		it.SetStatus(batch.StatusProcessing, "")
		if err := write(j.OutPath, func(w io.Writer) error { return s.Export(ctx, w, opts) }); err != nil {
			klog.Errorf("%s: %v", j.InPath, err)
			it.SetStatus(batch.StatusError, err.Error())
			sum.Failed++
			continue
		}
		it.SetStatus(batch.StatusCompleted, "")
		sum.Written++
		klog.Infof("wrote %s", j.OutPath)

		if len(c.Social) > 0 {
			dest := strings.TrimSuffix(j.OutPath, filepath.Ext(j.OutPath)) + "_social.zip"
			err := write(dest, func(w io.Writer) error {
				_, err := s.ExportSocial(ctx, w, c.Social, layout.FitMode(c.FitMode), opts)
				return err
			})
			if err != nil {
				klog.Errorf("%s: social: %v", j.InPath, err)
			}
		}
	}

	if !c.Zip {
		return nil
	}
	dest := filepath.Join(c.OutDir, fmt.Sprintf("imgecho-%03d.zip", n+1))
	return write(dest, func(w io.Writer) error {
		r, err := s.ExportBatch(ctx, w, opts, func(done, total int) {
			klog.V(1).Infof("zip %s: %d/%d", dest, done, total)
		})
		sum.Written += r.Succeeded
		sum.Failed += r.Failed
		return err
	})
}

// write creates path and fills it with fn, removing it again on failure.
func write(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
