// Command hmmsynth samples a feature sequence from a trained neural HMM.
// Encoder outputs arrive as a gob-encoded [][]float64 (states × encoder
// dim); frames are written as CSV with the state trace on stderr.
package main

import (
	"encoding/csv"
	"encoding/gob"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/ieee0824/tts-go/hmm"
)

func main() {
	modelPath := flag.String("model", "data/hmm.gob", "path to saved model")
	encPath := flag.String("enc", "", "gob-encoded encoder outputs (required)")
	outPath := flag.String("out", "frames.csv", "output CSV path")
	temp := flag.Float64("temp", -1, "sampling temperature (-1 = model default)")
	steps := flag.Int("steps", 0, "max sampling steps (0 = model default)")
	seed := flag.Int64("seed", 0, "random seed (0 = nondeterministic)")
	stochastic := flag.Bool("stochastic", false, "stochastic state transitions")
	flag.Parse()

	if *encPath == "" {
		fmt.Fprintln(os.Stderr, "usage: hmmsynth -enc encoder.gob [-model data/hmm.gob]")
		os.Exit(2)
	}

	var opts []hmm.Option
	if *seed != 0 {
		opts = append(opts, hmm.WithRand(rand.New(rand.NewSource(*seed))))
	}

	mf, err := os.Open(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open model: %v\n", err)
		os.Exit(1)
	}
	model, err := hmm.Load(mf, opts...)
	mf.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		os.Exit(1)
	}

	ef, err := os.Open(*encPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open encoder outputs: %v\n", err)
		os.Exit(1)
	}
	var enc [][]float64
	err = gob.NewDecoder(ef).Decode(&enc)
	ef.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode encoder outputs: %v\n", err)
		os.Exit(1)
	}

	sampleOpts := model.DefaultSampleOptions()
	if *temp >= 0 {
		sampleOpts.Temperature = *temp
	}
	if *steps > 0 {
		sampleOpts.MaxSteps = *steps
	}
	if *stochastic {
		sampleOpts.Deterministic = false
	}

	res, err := model.Sample(enc, sampleOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample: %v\n", err)
		os.Exit(1)
	}

	of, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer of.Close()
	w := csv.NewWriter(of)
	for _, frame := range res.Frames {
		row := make([]string, len(frame))
		for i, v := range frame {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintf(os.Stderr, "write frame: %v\n", err)
			os.Exit(1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "flush output: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "emitted %d frames over %d states\n", len(res.Frames), len(enc))
	fmt.Fprintf(os.Stderr, "state trace: %v\n", res.States)
}
