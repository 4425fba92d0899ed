package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/delaneyj/metalkv/metal"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	maxSizeKey = "max"
	profileKey = "profile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure change propagation through chains and computed properties",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Sets measured per row",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  maxSizeKey,
				Usage: "Largest width and height to run",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
				Value: "default.pgo",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var sizes = []int{1, 10, 100, 1_000}

func run(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Int(itersKey))
	maxSize := int(cmd.Int(maxSizeKey))
	var ww, hh []int
	for _, s := range sizes {
		if s <= maxSize {
			ww = append(ww, s)
			hh = append(hh, s)
		}
	}

	if len(ww) == 0 {
		return fmt.Errorf("--%s must be at least %d", maxSizeKey, sizes[0])
	}

	log.Printf("warming up")
	if err := benchmarkChains(ww[:1], hh[:1], iters, false); err != nil {
		return err
	}
	if err := benchmarkChains(ww, hh, iters, true); err != nil {
		return err
	}
	return benchmarkComputed(ww, hh, iters, true)
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendRow(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{
		{
			name,
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		},
	})
}

// deepPath is "next.next.(...).v" with h segments.
func deepPath(h int) string {
	return strings.Repeat("next.", h-1) + "v"
}

// benchmarkChains observes a path of depth h from w roots, then measures
// setting the leaf and replacing the first intermediate object.
func benchmarkChains(ww, hh []int, iters int, shouldRender bool) error {
	tbl := newTable("Chains")

	for _, w := range ww {
		for _, h := range hh {
			sys := metal.NewSystem()
			leaf, head := buildList(sys, h)

			fired := 0
			roots := make([]*metal.Object, w)
			for i := range roots {
				roots[i] = sys.NewObject(nil, metal.Props{"next": head})
				err := metal.AddObserver(roots[i], deepPath(h+1), nil, "count", func(any, *metal.Object, string) error {
					fired++
					return nil
				})
				if err != nil {
					return err
				}
			}

			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				start := time.Now()
				if _, err := metal.Set(leaf, "v", i+1); err != nil {
					return err
				}
				tach.AddTime(time.Since(start))
			}
			if fired != w*iters {
				return fmt.Errorf("leaf %d * %d: expected %d notifications, got %d", w, h, w*iters, fired)
			}
			appendRow(tbl, fmt.Sprintf("leaf: %d * %d", w, h), tach)

			fired = 0
			tach = tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				_, replacement := buildList(sys, h)
				start := time.Now()
				for _, root := range roots {
					if _, err := metal.Set(root, "next", replacement); err != nil {
						return err
					}
				}
				tach.AddTime(time.Since(start))
			}
			if fired != w*iters {
				return fmt.Errorf("reroot %d * %d: expected %d notifications, got %d", w, h, w*iters, fired)
			}
			appendRow(tbl, fmt.Sprintf("reroot: %d * %d", w, h), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
	return nil
}

// buildList links h objects through "next"; the last one holds "v".
func buildList(sys *metal.System, h int) (leaf, head *metal.Object) {
	leaf = sys.NewObject(nil, metal.Props{"v": 0})
	head = leaf
	for j := 1; j < h; j++ {
		head = sys.NewObject(nil, metal.Props{"next": head})
	}
	return leaf, head
}

// benchmarkComputed builds w objects, each with h computed properties
// stacked on a shared source, and measures setting the source.
func benchmarkComputed(ww, hh []int, iters int, shouldRender bool) error {
	tbl := newTable("Computed properties")

	for _, w := range ww {
		for _, h := range hh {
			sys := metal.NewSystem()
			src := sys.NewObject(nil, metal.Props{"v": 1})

			fired := 0
			for i := 0; i < w; i++ {
				props := metal.Props{"src": src}
				prev := "src.v"
				for j := 0; j < h; j++ {
					dep := prev
					props[fmt.Sprintf("c%d", j)] = metal.Computed(func(obj *metal.Object, _ string) any {
						n, _ := metal.Get(obj, dep).(int)
						return n + 1
					}, dep)
					prev = fmt.Sprintf("c%d", j)
				}
				obj := sys.NewObject(nil, props)
				err := metal.AddObserver(obj, prev, nil, "count", func(_ any, o *metal.Object, key string) error {
					metal.Get(o, key)
					fired++
					return nil
				})
				if err != nil {
					return err
				}
			}

			tach := tachymeter.New(&tachymeter.Config{Size: iters})
			for i := 0; i < iters; i++ {
				start := time.Now()
				if _, err := metal.Set(src, "v", metal.Get(src, "v").(int)+1); err != nil {
					return err
				}
				tach.AddTime(time.Since(start))
			}
			if fired != w*iters {
				return fmt.Errorf("computed %d * %d: expected %d notifications, got %d", w, h, w*iters, fired)
			}
			appendRow(tbl, fmt.Sprintf("propagate: %d * %d", w, h), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
	return nil
}
