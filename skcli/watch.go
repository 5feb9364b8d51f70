package skcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"oss.terrastruct.com/util-go/xmain"
)

type watcher struct {
	ms   *xmain.State
	opts *exportOpts
	fw   *fsnotify.Watcher

	// exported is called after every export attempt.
	exported func(error)
}

func watch(ctx context.Context, ms *xmain.State, opts *exportOpts) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	w := &watcher{ms: ms, opts: opts, fw: fw}
	return w.watchLoop(ctx)
}

// paths are the files an export depends on.
func (w *watcher) paths() []string {
	paths := []string{w.opts.setPath, w.opts.inputPath}
	if w.opts.configPath != "" {
		paths = append(paths, w.opts.configPath)
	}
	return paths
}

func (w *watcher) export(ctx context.Context) {
	err := export(ctx, w.ms, w.opts)
	if err != nil {
		w.ms.Log.Error.Printf("%v", err)
	}
	if w.exported != nil {
		w.exported(err)
	}
}

func (w *watcher) watchLoop(ctx context.Context) error {
	lastModified := make(map[string]time.Time)
	for _, p := range w.paths() {
		mt, err := w.ensureAddWatch(ctx, p)
		if err != nil {
			return err
		}
		lastModified[p] = mt
	}
	w.ms.Log.Info.Printf("exporting %v...", w.ms.HumanPath(w.opts.inputPath))
	w.export(ctx)

	eatBurstTimer := time.NewTimer(0)
	<-eatBurstTimer.C
	pollTicker := time.NewTicker(time.Second * 10)
	defer pollTicker.Stop()

	changed := make(map[string]struct{})

	for {
		select {
		case <-pollTicker.C:
			// Editors that replace files can drop the watch without an event.
			missedChanges := false
			for _, p := range w.paths() {
				mt, err := w.ensureAddWatch(ctx, p)
				if err != nil {
					return err
				}
				if mt2, ok := lastModified[p]; !ok || !mt.Equal(mt2) {
					missedChanges = true
					lastModified[p] = mt
				}
			}
			if missedChanges {
				w.export(ctx)
			}
		case ev, ok := <-w.fw.Events:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Debug.Printf("received file system event %v", ev)
			mt, err := w.ensureAddWatch(ctx, ev.Name)
			if err != nil {
				return err
			}
			if ev.Op == fsnotify.Chmod {
				if mt.Equal(lastModified[ev.Name]) {
					continue
				}
			}
			lastModified[ev.Name] = mt
			changed[ev.Name] = struct{}{}
			// Batch the bursts of events a single save produces.
			eatBurstTimer.Reset(time.Millisecond * 16)
		case <-eatBurstTimer.C:
			if len(changed) == 0 {
				continue
			}
			var changedList []string
			for k := range changed {
				changedList = append(changedList, k)
				delete(changed, k)
			}
			sort.Strings(changedList)
			changedStr := w.ms.HumanPath(changedList[0])
			for i := 1; i < len(changedList); i++ {
				changedStr += fmt.Sprintf(", %s", w.ms.HumanPath(changedList[i]))
			}
			w.ms.Log.Info.Printf("detected change in %s: exporting...", changedStr)
			w.export(ctx)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Error.Printf("fsnotify error: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ensureAddWatch retries adding path until it succeeds, backing off up to
// 16 seconds between attempts.
func (w *watcher) ensureAddWatch(ctx context.Context, path string) (time.Time, error) {
	interval := time.Millisecond * 16
	tc := time.NewTimer(0)
	<-tc.C
	for {
		mt, err := w.addWatch(path)
		if err == nil {
			return mt, nil
		}
		if interval >= time.Second {
			w.ms.Log.Error.Printf("failed to watch %q: %v (retrying in %v)", w.ms.HumanPath(path), err, interval)
		}

		tc.Reset(interval)
		select {
		case <-tc.C:
			if interval < time.Second {
				interval = time.Second
			}
			if interval < time.Second*16 {
				interval *= 2
			}
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func (w *watcher) addWatch(path string) (time.Time, error) {
	if err := w.fw.Add(path); err != nil {
		return time.Time{}, err
	}
	d, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return d.ModTime(), nil
}
