package rhl

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}

//ReadGradientPairs loads the per-row gradient pair array of one
//boosting round from an (n x 2) npy file, gradient first column.
func ReadGradientPairs(fileName string) []GradientPair[float64] {
	return PairsFromDense(ReadNpy(fileName))
}

//WriteHistogramNpy dumps a built histogram as an (nBins x 2) npy file
//with gradient in the first column and hessian in the second.
func WriteHistogramNpy[T Floats](hist *Histogram[T], fileName string) {
	out := mat.NewDense(hist.NumBins(), 2, nil)
	for bin := 0; bin < hist.NumBins(); bin++ {
		pair := hist.At(bin)
		out.Set(bin, 0, float64(pair.Grad))
		out.Set(bin, 1, float64(pair.Hess))
	}

	dst, err := os.Create(fileName)
	HandleError(err)
	defer func() { HandleError(dst.Close()) }()
	HandleError(npyio.Write(dst, out))
}
