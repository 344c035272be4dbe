package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pikawatch/pika-sonar/algorithms/spectral"
	"github.com/pikawatch/pika-sonar/detector"
)

// shades maps cell intensity to characters, darkest last
const shades = " .:-=+*#%@"

const (
	displayRows    = 24
	axisWidth      = 8
	minDisplayCols = 20
)

// asciiDisplay draws spectrograms as text with frequency on the vertical
// axis, high frequencies at the top.
type asciiDisplay struct {
	out   io.Writer
	width int // columns available, axis included
}

func (a *asciiDisplay) Show(title string, spec *spectral.Spectrogram) error {
	_, err := io.WriteString(a.out, renderSpectrogram(title, spec, a.width))
	return err
}

func renderSpectrogram(title string, spec *spectral.Spectrogram, width int) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte('\n')

	frames := len(spec.Frames)
	bins := spec.NumBins()
	if frames == 0 || bins == 0 {
		b.WriteString("(empty)\n")
		return b.String()
	}

	cols := min(frames, max(minDisplayCols, width-axisWidth))
	rows := min(bins, displayRows)

	for r := rows - 1; r >= 0; r-- {
		binFrom, binTo := r*bins/rows, (r+1)*bins/rows
		fmt.Fprintf(&b, "%6.0f |", spec.BinFrequency(binFrom))

		for c := 0; c < cols; c++ {
			frameFrom, frameTo := c*frames/cols, max((c+1)*frames/cols, c*frames/cols+1)
			peak := 0.0
			for f := frameFrom; f < frameTo; f++ {
				for bin := binFrom; bin < binTo; bin++ {
					peak = max(peak, spec.Frames[f][bin])
				}
			}
			b.WriteByte(shade(peak))
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "%6s +%s\n", "Hz", strings.Repeat("-", cols))
	fmt.Fprintf(&b, "%8s%.2fs\n", "", spec.FrameTime(frames-1)+float64(spec.FrameSize)/float64(spec.SampleRate))
	return b.String()
}

func shade(v float64) byte {
	i := int(v * float64(len(shades)))
	return shades[min(max(i, 0), len(shades)-1)]
}

// linePrompter reads y/n/q answers, one per line
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *linePrompter) Ask(title string) (detector.Verdict, error) {
	for {
		fmt.Fprint(p.out, "Is this a call? [y]es / [n]o / [q]uit: ")
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			return detector.Abort, err
		}
		if verdict, ok := parseVerdict(line); ok {
			return verdict, nil
		}
		fmt.Fprintf(p.out, "please answer y, n or q for %s\n", title)
	}
}

func parseVerdict(answer string) (detector.Verdict, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return detector.Confirmed, true
	case "n", "no":
		return detector.Rejected, true
	case "q", "quit":
		return detector.Abort, true
	default:
		return detector.Rejected, false
	}
}
