package sherpa

import "strings"

// utterance turns a one-shot recognizer into a streaming one. Audio is
// buffered and the whole window is decoded again every interval samples, so
// each result is a refinement of the previous one. A full window is committed
// and decoding continues on a fresh one.
type utterance struct {
	interval int
	max      int

	buf       []float32
	pending   int
	committed string
	current   string
}

func newUtterance(interval, max int) *utterance {
	if interval < 1 {
		interval = 1
	}
	if max < interval {
		max = interval
	}
	return &utterance{interval: interval, max: max}
}

func (u *utterance) accept(samples []float32) {
	u.buf = append(u.buf, samples...)
	u.pending += len(samples)
}

func (u *utterance) ready() bool {
	return len(u.buf) > 0 && (u.pending >= u.interval || len(u.buf) >= u.max)
}

// decode runs fn on the current window. On error the window is kept and the
// next ready check waits for another interval of audio. An empty result
// leaves the previous text in place.
func (u *utterance) decode(fn func(window []float32) (string, error)) error {
	u.pending = 0
	win := u.buf
	if len(win) > u.max {
		win = win[:u.max]
	}
	text, err := fn(win)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = u.current
	}
	if len(win) < u.max {
		u.current = text
		return nil
	}
	u.committed = join(u.committed, text)
	u.current = ""
	rest := make([]float32, len(u.buf)-len(win))
	copy(rest, u.buf[len(win):])
	u.buf = rest
	u.pending = len(rest)
	return nil
}

func (u *utterance) text() string { return join(u.committed, u.current) }

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
