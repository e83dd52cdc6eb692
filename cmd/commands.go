package cmd

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/m-ll/backup/codec"
	"github.com/m-ll/backup/fec"
	proc_unit "github.com/m-ll/backup/pu"
	st "github.com/m-ll/backup/pu/streamer"
	vl "github.com/m-ll/backup/pu/vanilla"
	"github.com/m-ll/backup/segment"
	u "github.com/m-ll/backup/util"
	"github.com/m-ll/backup/xlog"
)

// app holds what every command needs once the flags are parsed.
type app struct {
	v        *viper.Viper
	fs       afero.Fs
	log      *zap.Logger
	logPaths []string
	verbose  int

	inputs     []string
	fileParity string
	fileOut    string
	force      bool
}

func newApp(fs afero.Fs) *app {
	return &app{v: viper.New(), fs: fs, logPaths: []string{"stderr"}}
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	return newApp(fs).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ecc",
		Short: "Protect files with Reed-Solomon parity.",
		Long: `ecc writes a parity file for every data file it is given and later uses
it to repair the data. Every block of data symbols gets its own parity
symbols, and the blocks are coded on as many workers as there are CPUs.

Inputs may be files or directories, which are walked recursively. Unless
given explicitly, parity files go to ecc-<codec>-<n>-<k>/<input>.ecc-<codec>-<n>-<k>
and repaired files to ecc-regenerated/<input>.regenerated.`,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.CountVarP(&a.verbose, "verbose", "v", "Log more (-v info, -vv debug and metrics)")
	pf.String("config", "", "Config file")
	pf.Int("workers", runtime.NumCPU(), "Number of workers, and so the maximum number of chunks")
	pf.StringP("proc", "p", "vanilla", `Processing unit ("vanilla", "streamer")`)
	pf.String("codec", "infectious", `Block codec ("infectious", "reedsolomon")`)
	pf.Int("data-length", fec.DefaultDataLength, "Data symbols per block")
	pf.Int("fec-length", fec.DefaultFecLength, "Parity symbols per block")
	pf.String("ext", "", `Only take input files with this extension (".gpg"), every file if empty`)
	for _, name := range []string{"config", "workers", "proc", "codec", "data-length", "fec-length", "ext"} {
		a.v.BindPFlag(name, pf.Lookup(name))
	}
	a.v.SetEnvPrefix("ecc")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.encodeCmd(),
		a.decodeCmd(),
		a.checkCmd(),
		a.checkSizeCmd(),
	)
	return root
}

func (a *app) inputFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&a.inputs, "input", "i", nil, "Data files or directories")
	cmd.MarkFlagRequired("input")
}

func (a *app) encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encode",
		Aliases: []string{"e"},
		Short:   "Write the parity of data files",
		Args:    cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			c, err := a.codec(segment.Stop)
			if err != nil {
				return err
			}
			jobs, err := a.jobs(a.fileOut, "")
			if err != nil {
				return err
			}
			return a.each(jobs, func(j job) error {
				exists, err := afero.Exists(a.fs, j.Parity)
				if err != nil {
					return err
				}
				if exists && !a.force {
					a.skip(cmd, j, "parity file already exists")
					return nil
				}
				if err := a.mkdirFor(j.Parity); err != nil {
					return err
				}
				r, err := c.Encode(cmd.Context(), j.Input, j.Parity)
				if err != nil {
					return err
				}
				return r.Err()
			})
		}),
	}
	a.inputFlag(cmd)
	cmd.Flags().StringVarP(&a.fileOut, "output", "o", "", "Parity file, single input only")
	cmd.Flags().BoolVarP(&a.force, "force", "f", false, "Overwrite existing parity files")
	return cmd
}

func (a *app) decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decode",
		Aliases: []string{"d"},
		Short:   "Repair data files with their parity",
		Args:    cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			policy, err := segment.ParsePolicy(a.v.GetString("policy"))
			if err != nil {
				return err
			}
			c, err := a.codec(policy)
			if err != nil {
				return err
			}
			jobs, err := a.jobs(a.fileParity, a.fileOut)
			if err != nil {
				return err
			}
			return a.each(jobs, func(j job) error {
				if ok, err := a.hasParity(cmd, j); !ok {
					return err
				}
				if err := a.mkdirFor(j.Output); err != nil {
					return err
				}
				r, err := c.Decode(cmd.Context(), j.Input, j.Parity, j.Output)
				if err != nil {
					return err
				}
				printReport(cmd, j, r)
				return r.Err()
			})
		}),
	}
	a.inputFlag(cmd)
	cmd.Flags().StringVarP(&a.fileParity, "ecc", "e", "", "Parity file, single input only")
	cmd.Flags().StringVarP(&a.fileOut, "output", "o", "", "Repaired data file, single input only")
	cmd.Flags().String("policy", segment.Stop.String(), `What to do after a block cannot be repaired ("stop", "skip", "keep")`)
	a.v.BindPFlag("policy", cmd.Flags().Lookup("policy"))
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Tell whether data files are intact, repairable or lost",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			c, err := a.codec(segment.Skip)
			if err != nil {
				return err
			}
			jobs, err := a.jobs(a.fileParity, "")
			if err != nil {
				return err
			}
			return a.each(jobs, func(j job) error {
				if ok, err := a.hasParity(cmd, j); !ok {
					return err
				}
				r, err := c.Check(cmd.Context(), j.Input, j.Parity)
				if err != nil {
					return err
				}
				printReport(cmd, j, r)
				return r.Err()
			})
		}),
	}
	a.inputFlag(cmd)
	cmd.Flags().StringVarP(&a.fileParity, "ecc", "e", "", "Parity file, single input only")
	return cmd
}

func (a *app) checkSizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-size",
		Short: "Tell whether parity files can belong to their data files",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			c, err := a.codec(segment.Stop)
			if err != nil {
				return err
			}
			jobs, err := a.jobs(a.fileParity, "")
			if err != nil {
				return err
			}
			return a.each(jobs, func(j job) error {
				if ok, err := a.hasParity(cmd, j); !ok {
					return err
				}
				if err := c.CheckSize(j.Input, j.Parity); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: size ok\n", j.Input)
				return nil
			})
		}),
	}
	a.inputFlag(cmd)
	cmd.Flags().StringVarP(&a.fileParity, "ecc", "e", "", "Parity file, single input only")
	return cmd
}

// run silences the usage text once the flags are known to be fine, and
// flushes the logs and metrics whatever the command returns.
func (a *app) run(f func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		defer a.flush()
		return f(cmd)
	}
}

func (a *app) flush() {
	if a.log == nil {
		return
	}
	a.dumpStats()
	a.log.Sync()
}

func (a *app) setup() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetFs(a.fs)
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return u.WrapErr("read config", err)
		}
	}
	log, err := xlog.NewLogger(a.logPaths, xlog.Level(a.verbose))
	if err != nil {
		return u.WrapErr("build logger", err)
	}
	a.log = log
	return nil
}

func (a *app) codec(policy segment.Policy) (*codec.Codec, error) {
	p := fec.Params{
		DataLength: a.v.GetInt("data-length"),
		FecLength:  a.v.GetInt("fec-length"),
	}
	fc, err := fec.New(a.v.GetString("codec"), p)
	if err != nil {
		return nil, err
	}
	pu, err := a.processingUnit()
	if err != nil {
		return nil, err
	}
	return codec.NewCodec(fc, pu, a.fs, codec.Config{
		Workers: a.v.GetInt("workers"),
		Policy:  policy,
		Logger:  a.log,
	}), nil
}

func (a *app) processingUnit() (proc_unit.PU, error) {
	switch proc := a.v.GetString("proc"); proc {
	case "vanilla":
		return vl.NewVanillaPU(a.log), nil
	case "streamer":
		return st.NewStreamerPU(a.log), nil
	default:
		return nil, xerrors.Errorf("unknown processor %q", proc)
	}
}

func (a *app) dumpStats() {
	if a.verbose < 2 {
		return
	}
	stats := monkit.Collect(monkit.Default)
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.log.Debug("stat", zap.String("key", k), zap.Float64("value", stats[k]))
	}
}

func printReport(cmd *cobra.Command, j job, r *codec.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: blocks: %d repaired: %d failed: %d changed: %t\n",
		j.Input, r.Blocks, r.Repaired, r.Failed, r.Differs())
}

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return newRootCmd(afero.NewOsFs()).ExecuteContext(ctx)
}
