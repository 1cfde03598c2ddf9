package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/tarstars/reproducible_boosting/golang/repro_histogram/rhl"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	rhl.HandleError(err)
	defer func() { rhl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	rhl.HandleError(decoder.Decode(out))
}

type BuildConfig struct {
	FileNameFeatures  string `json:"filename_features"`
	FileNameGradients string `json:"filename_gradients"`
	FileNameRows      string `json:"filename_rows"`
	FileNameHistogram string `json:"filename_histogram"`
	MaxBinsPerFeature int    `json:"max_bins_per_feature"`
	UseStaging        *bool  `json:"use_staging"`
	ThreadsNum        int    `json:"threads_num"`
}

//rowSet loads the node row set, or takes every row when no file is
//configured (the root node case).
func rowSet(fileName string, numRows int) []int {
	if fileName == "" {
		rows := make([]int, numRows)
		for p := range rows {
			rows[p] = p
		}
		return rows
	}
	rowsMat := rhl.ReadNpy(fileName)
	h, _ := rowsMat.Dims()
	rows := make([]int, h)
	for p := 0; p < h; p++ {
		rows[p] = int(rowsMat.At(p, 0))
	}
	return rows
}

func build(srcConfig string) {
	var buildConfig BuildConfig
	decodeConfig(srcConfig, &buildConfig)

	log.Print("load features from <", buildConfig.FileNameFeatures, ">")
	features := rhl.ReadNpy(buildConfig.FileNameFeatures)
	log.Print("load gradients from <", buildConfig.FileNameGradients, ">")
	pairs := rhl.ReadGradientPairs(buildConfig.FileNameGradients)

	maxBins := buildConfig.MaxBinsPerFeature
	if maxBins == 0 {
		maxBins = 256
	}
	matrix := rhl.NewEllpackFromDense(features, maxBins)
	log.Print("quantized into ", matrix.NumBins, " bins, row stride ", matrix.RowStride)

	factor := rhl.ComputeRoundingFactor(pairs)
	log.Print("rounding factor grad=", factor.Grad, " hess=", factor.Hess)

	rows := rowSet(buildConfig.FileNameRows, matrix.NumRows)

	builder := rhl.NewHistogramBuilder[float64]()
	builder.ThreadsNum = buildConfig.ThreadsNum

	useStaging := builder.UseStaging(matrix.NumBins)
	if buildConfig.UseStaging != nil {
		useStaging = *buildConfig.UseStaging
	}
	log.Print("staged accumulation: ", useStaging)

	hist := rhl.NewHistogram[float64](matrix.NumBins)
	rhl.HandleError(builder.BuildWithStaging(matrix, pairs, rows, hist, factor, useStaging))

	rhl.WriteHistogramNpy(hist, buildConfig.FileNameHistogram)
	log.Print("histogram written to <", buildConfig.FileNameHistogram, ">")
}

type GraphConfig struct {
	FileNameHistogram string `json:"filename_histogram"`
	FigureType        string `json:"figure_type"`
	FileNameFigure    string `json:"filename_figure"`
	Title             string `json:"title"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	histMat := rhl.ReadNpy(graphConfig.FileNameHistogram)
	h, _ := histMat.Dims()
	hist := rhl.NewHistogram[float64](h)
	for bin, pair := range rhl.PairsFromDense(histMat) {
		hist.AtomicAdd(bin, pair)
	}

	title := graphConfig.Title
	if title == "" {
		title = "histogram"
	}
	rhl.RenderHistogram(hist, title, graphConfig.FigureType, graphConfig.FileNameFigure)
}

func main() {
	runMode := flag.String("mode", "build", "you can select either 'build' or 'graph' modes")
	config := flag.String("config", "histogram_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"build": build,
		"graph": graph,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		rhl.HandleError(err)
		defer func() { rhl.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
