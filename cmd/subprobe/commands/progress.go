package commands

import (
	"io"
	"os"
	"sync"

	"github.com/bl4ck0w1/subprobe/internal/orchestration"
	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

type stageBar struct {
	bar  *pterm.ProgressbarPrinter
	done int
}

// progressView draws one pterm progress bar per pipeline stage.
type progressView struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*stageBar
}

// newProgressView returns nil when progress output is unwanted: quiet mode
// or stderr is not a terminal.
func newProgressView() *progressView {
	if viper.GetBool("quiet") || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return &progressView{out: os.Stderr, bars: make(map[string]*stageBar)}
}

// Func adapts the view to the engine's progress callback. A nil view
// yields a nil callback.
func (v *progressView) Func() orchestration.ProgressFunc {
	if v == nil {
		return nil
	}
	return v.update
}

func (v *progressView) update(stage string, done, total int) {
	if total <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	sb, ok := v.bars[stage]
	if !ok {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(stage).
			WithWriter(v.out).
			WithRemoveWhenDone(false).
			Start()
		if err != nil {
			return
		}
		sb = &stageBar{bar: bar}
		v.bars[stage] = sb
	}
	if delta := done - sb.done; delta > 0 {
		sb.bar.Add(delta)
		sb.done = done
	}
	if done >= total {
		_, _ = sb.bar.Stop()
	}
}

// stop finishes any bar left running by a cancelled stage.
func (v *progressView) stop() {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, sb := range v.bars {
		if sb.bar.IsActive {
			_, _ = sb.bar.Stop()
		}
	}
}
