// Command masalign extracts per-character durations from saved alignment
// inputs via monotonic alignment search. The input gob holds the predicted
// per-position Gaussian parameters and the target frames.
package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ieee0824/tts-go/align"
)

// alignInput is the gob layout produced by the training pipeline.
type alignInput struct {
	Mu       [][]float64 // (encLen × featDim)
	LogSigma [][]float64 // (encLen × featDim)
	Frames   [][]float64 // (decLen × featDim)
}

func main() {
	inPath := flag.String("input", "", "gob-encoded alignment inputs (required)")
	lengthScale := flag.Float64("length-scale", 0, "if > 0, also print scaled durations")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: masalign -input align.gob")
		os.Exit(2)
	}

	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open input: %v\n", err)
		os.Exit(1)
	}
	var in alignInput
	err = gob.NewDecoder(f).Decode(&in)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode input: %v\n", err)
		os.Exit(1)
	}

	durs, _, err := align.ComputeAlignPath(in.Mu, in.LogSigma, in.Frames, len(in.Mu), len(in.Frames))
	if err != nil {
		fmt.Fprintf(os.Stderr, "alignment: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(joinInts(durs))

	if *lengthScale > 0 {
		// Round-trip through the log-duration formatting used at synthesis
		// time to preview the speed-scaled durations.
		logDurs := make([]float64, len(durs))
		for i, d := range durs {
			// Inverse of the (exp(x)-1) duration formatting.
			logDurs[i] = math.Log(float64(d) + 1)
		}
		scaled := align.FormatDurations(logDurs, *lengthScale)
		fmt.Println(joinInts(scaled))
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ",")
}
