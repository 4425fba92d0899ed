package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/delaneyj/metalkv/metal"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func main() {
	log.Print("Starting batch benchmark, please wait...")
	defer log.Print("Finished batch benchmark")

	cfgs := []batchTestConfig{
		{
			name:          "single key",
			objects:       1,
			keys:          1,
			setsPerKey:    100,
			iterations:    10_000,
			observersEach: 1,
		},
		{
			name:          "form",
			objects:       1,
			keys:          20,
			setsPerKey:    3,
			iterations:    10_000,
			observersEach: 2,
		},
		{
			name:          "table rows",
			objects:       1_000,
			keys:          5,
			setsPerKey:    1,
			iterations:    200,
			observersEach: 1,
			shuffle:       true,
		},
		{
			name:          "hot loop",
			objects:       10,
			keys:          2,
			setsPerKey:    1_000,
			iterations:    100,
			observersEach: 4,
		},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"mode", "objects", "keys", "sets/key", "observers",
		"nTimes", "test", "time", "notifications", "setRate", "title",
	})

	testRepeats := 5
	for _, cfg := range cfgs {
		for _, batched := range []bool{false, true} {
			mode := "direct"
			if batched {
				mode = "batched"
			}
			log.Printf("Running '%s' config, %s", cfg.name, mode)

			best := &result{duration: time.Hour}
			for i := 0; i < testRepeats; i++ {
				res, err := runBatch(cfg, batched)
				if err != nil {
					log.Fatal(err)
				}
				if res.duration < best.duration {
					best = res
				}
			}

			totalSets := cfg.iterations * cfg.objects * cfg.keys * cfg.setsPerKey
			setRate := float64(totalSets) / (float64(best.duration) / float64(time.Millisecond))

			table.Append([]string{
				mode,
				humanize.Comma(cfg.objects),
				humanize.Comma(cfg.keys),
				humanize.Comma(cfg.setsPerKey),
				humanize.Comma(cfg.observersEach),
				humanize.Comma(cfg.iterations),
				cfg.name,
				fmt.Sprint(best.duration),
				humanize.Comma(best.notifications),
				humanize.Comma(int64(setRate)),
				cfg.title(),
			})
		}
	}
	table.Render()
}

type batchTestConfig struct {
	name          string
	objects       int64 // observed objects
	keys          int64 // keys per object
	setsPerKey    int64 // writes to each key per iteration
	iterations    int64
	observersEach int64 // observers per key
	shuffle       bool  // visit keys in random order instead of object order
}

func (cfg batchTestConfig) title() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%dx%d keys, %d sets", cfg.objects, cfg.keys, cfg.setsPerKey))
	if cfg.shuffle {
		sb.WriteString(" shuffled")
	}
	return sb.String()
}

// expectedNotifications is what observers must see: one per write when
// writes go straight through, one per (object, key) per batch otherwise.
func (cfg batchTestConfig) expectedNotifications(batched bool) int64 {
	perIteration := cfg.objects * cfg.keys * cfg.observersEach
	if !batched {
		perIteration *= cfg.setsPerKey
	}
	return perIteration * cfg.iterations
}

type result struct {
	duration      time.Duration
	notifications int64
}

type write struct {
	obj *metal.Object
	key string
}

func runBatch(cfg batchTestConfig, batched bool) (*result, error) {
	sys := metal.NewSystem()
	notifications := new(int64)

	writes := make([]write, 0, cfg.objects*cfg.keys)
	for o := int64(0); o < cfg.objects; o++ {
		props := metal.Props{}
		for k := int64(0); k < cfg.keys; k++ {
			props[fmt.Sprintf("k%d", k)] = 0
		}
		obj := sys.NewObject(nil, props)
		for k := int64(0); k < cfg.keys; k++ {
			key := fmt.Sprintf("k%d", k)
			for n := int64(0); n < cfg.observersEach; n++ {
				err := metal.AddObserver(obj, key, nil, fmt.Sprintf("observer%d", n), func(any, *metal.Object, string) error {
					*notifications++
					return nil
				})
				if err != nil {
					return nil, err
				}
			}
			writes = append(writes, write{obj: obj, key: key})
		}
	}
	if cfg.shuffle {
		random := rand.New(rand.NewSource(0))
		random.Shuffle(len(writes), func(i, j int) { writes[i], writes[j] = writes[j], writes[i] })
	}

	value := 0
	iteration := func() error {
		for _, w := range writes {
			for s := int64(0); s < cfg.setsPerKey; s++ {
				value++
				if _, err := metal.Set(w.obj, w.key, value); err != nil {
					return err
				}
			}
		}
		return nil
	}

	start := time.Now()
	for i := int64(0); i < cfg.iterations; i++ {
		var err error
		if batched {
			err = sys.ChangeProperties(iteration)
		} else {
			err = iteration()
		}
		if err != nil {
			return nil, err
		}
	}
	duration := time.Since(start)

	if expected := cfg.expectedNotifications(batched); *notifications != expected {
		return nil, fmt.Errorf("%s: expected %d notifications, got %d", cfg.name, expected, *notifications)
	}
	return &result{duration: duration, notifications: *notifications}, nil
}
