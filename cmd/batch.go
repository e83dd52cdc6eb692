package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	u "github.com/m-ll/backup/util"
)

const regeneratedDir = "ecc-regenerated"

// job is one data file with the paths of its parity and repaired files.
type job struct {
	Input  string
	Parity string
	Output string

	// defaultParity is set when Parity was derived from Input.
	defaultParity bool
}

// parityTag names the parity directory and suffix of one codec setup, so
// parity made with other parameters never gets mixed up with it.
func (a *app) parityTag() string {
	dl, fl := a.v.GetInt("data-length"), a.v.GetInt("fec-length")
	name := a.v.GetString("codec")
	if name == "" {
		name = "infectious"
	}
	return fmt.Sprintf("ecc-%s-%d-%d", name, dl+fl, fl)
}

// jobs expands the inputs and gives each one its parity and output paths.
// parity and out override the derived paths and need a single input.
func (a *app) jobs(parity, out string) ([]job, error) {
	inputs, err := a.collectInputs()
	if err != nil {
		return nil, err
	}
	if len(inputs) > 1 && (parity != "" || out != "") {
		return nil, xerrors.Errorf("explicit parity or output path with %d inputs", len(inputs))
	}

	tag := a.parityTag()
	jobs := make([]job, len(inputs))
	for i, in := range inputs {
		j := job{Input: in, Parity: parity, Output: out}
		if j.Parity == "" {
			j.Parity = filepath.Join(tag, in+"."+tag)
			j.defaultParity = true
		}
		if j.Output == "" {
			j.Output = filepath.Join(regeneratedDir, in+".regenerated")
		}
		jobs[i] = j
	}
	a.log.Info("files to process", zap.Int("count", len(jobs)))
	return jobs, nil
}

// collectInputs walks directory inputs and keeps the files with the wanted
// extension. Every missing input is reported at once.
func (a *app) collectInputs() ([]string, error) {
	var files, missing []string
	skipDirs := map[string]bool{a.parityTag(): true, regeneratedDir: true}

	for _, in := range a.inputs {
		fi, err := a.fs.Stat(in)
		if err != nil {
			missing = append(missing, in)
			continue
		}
		if !fi.IsDir() {
			if a.wanted(in) {
				files = append(files, in)
			}
			continue
		}

		err = afero.Walk(a.fs, in, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if path != in && skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if a.wanted(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, u.WrapErr("walk "+in, err)
		}
	}
	if len(missing) > 0 {
		return nil, xerrors.Errorf("inputs do not exist: %s", strings.Join(missing, ", "))
	}
	return files, nil
}

func (a *app) wanted(path string) bool {
	ext := a.v.GetString("ext")
	return ext == "" || filepath.Ext(path) == ext
}

// each runs fn over all jobs. A failed file does not stop the others.
func (a *app) each(jobs []job, fn func(j job) error) error {
	var result *multierror.Error
	for i, j := range jobs {
		a.log.Info("file", zap.String("input", j.Input), zap.Int("n", i+1), zap.Int("of", len(jobs)))
		if err := fn(j); err != nil {
			result = multierror.Append(result, u.WrapErr(j.Input, err))
		}
	}
	return result.ErrorOrNil()
}

func (a *app) skip(cmd *cobra.Command, j job, reason string) {
	a.log.Warn("skip", zap.String("input", j.Input), zap.String("parity", j.Parity), zap.String("reason", reason))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: skip, %s: %s\n", j.Input, reason, j.Parity)
}

// hasParity skips a file whose derived parity file was never written. An
// explicit parity path must exist.
func (a *app) hasParity(cmd *cobra.Command, j job) (bool, error) {
	if !j.defaultParity {
		return true, nil
	}
	exists, err := afero.Exists(a.fs, j.Parity)
	if err != nil {
		return false, err
	}
	if !exists {
		a.skip(cmd, j, "parity file does not exist")
	}
	return exists, nil
}

func (a *app) mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return u.WrapErr("create "+dir, err)
	}
	return nil
}
